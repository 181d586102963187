// Command migrate runs schema operations for the relational store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"devsnippet/internal/config"
	"devsnippet/internal/database"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const usage = "usage: migrate <up|auto|status|down <version>>"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver == config.StoreMongo {
		log.Fatal("STORE_DRIVER=mongo has no SQL schema; indexes are created on startup")
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	err = execute(context.Background(), db, cfg, os.Args[1:], os.Stdout)
	_ = database.Close(db)
	if err != nil {
		log.Fatal(err)
	}
}

func execute(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch strings.ToLower(args[0]) {
	case "up":
		if cfg.StoreDriver == config.StoreSQLite {
			return errors.New("the SQL migrations target PostgreSQL; use `migrate auto` for sqlite")
		}
		set, err := database.Embedded()
		if err != nil {
			return err
		}
		applied, err := database.NewMigrator(db, set).Up(ctx)
		for _, m := range applied {
			fmt.Fprintf(out, "applied %s\n", m)
		}
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		if len(applied) == 0 {
			fmt.Fprintln(out, "schema is up to date")
		}

	case "auto":
		if cfg.IsProduction() {
			return fmt.Errorf("refusing auto-migrate in %q", cfg.Env)
		}
		if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		fmt.Fprintln(out, "auto-migrate applied")

	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status: %w", err)
		}
		fmt.Fprintf(out, "mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
			status.Mode, status.Environment, status.WillRunSQL, status.WillRunAutoMigrate,
			len(status.AppliedVersions), len(status.PendingMigrations))
		for _, m := range status.PendingMigrations {
			fmt.Fprintf(out, "pending %s\n", m)
		}

	case "down":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		fmt.Fprintf(out, "rolled back %06d\n", version)

	default:
		return errors.New(usage)
	}
	return nil
}

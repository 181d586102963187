// Command sweep runs offline maintenance against the store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"devsnippet/internal/bootstrap"
	"devsnippet/internal/config"
	"devsnippet/internal/media"
	"devsnippet/internal/service"

	"github.com/joho/godotenv"
)

type maintenance interface {
	SweepOrphanPosts(ctx context.Context) (service.SweepResult, error)
	ReconcileMedia(ctx context.Context, limit int) (service.ReconcileResult, error)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return errors.New("usage: sweep <orphans|media> [-limit N]")
}

func run() error {
	if len(os.Args) < 2 {
		return usage()
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	limit := fs.Int("limit", 100, "maximum cleanup entries to process")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if command != "orphans" && command != "media" {
		return usage()
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if command == "media" && rt.Media == nil {
		return errors.New("media storage is not configured; set MEDIA_* before reconciling")
	}
	delegate := rt.Media
	if delegate == nil {
		delegate = media.NoopDelegate{}
	}

	svc := service.NewMaintenanceService(rt.Store.Posts, rt.Store.Cleanups, media.NewGuarded(delegate, cfg.MediaTimeout))
	return execute(ctx, svc, command, *limit, os.Stdout)
}

func execute(ctx context.Context, svc maintenance, command string, limit int, out io.Writer) error {
	switch command {
	case "orphans":
		res, err := svc.SweepOrphanPosts(ctx)
		if err != nil {
			return fmt.Errorf("orphan sweep failed: %w", err)
		}
		fmt.Fprintf(out, "deleted %d orphan posts\n", res.Deleted)
		if res.MediaQueued > 0 {
			fmt.Fprintf(out, "queued %d media deletions\n", res.MediaQueued)
		}
	case "media":
		res, err := svc.ReconcileMedia(ctx, limit)
		if err != nil {
			return fmt.Errorf("media reconciliation failed: %w", err)
		}
		fmt.Fprintf(out, "released %d of %d queued media (%d failed)\n", res.Released, res.Attempted, res.Failed)
	default:
		return usage()
	}
	return nil
}

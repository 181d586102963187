// Command admin provides operator utilities for administrator accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"devsnippet/internal/bootstrap"
	"devsnippet/internal/config"
	"devsnippet/internal/models"
	"devsnippet/internal/repository"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if err := execute(ctx, rt.Store.Users, cfg, os.Args[1:], os.Stdout); err != nil {
		_ = rt.Close()
		log.Fatal(err)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  admin create-admin          - Create the admin from ADMIN_EMAIL / ADMIN_PASSWORD")
	fmt.Println("  admin promote <username>    - Promote user to admin")
	fmt.Println("  admin demote <username>     - Demote user from admin")
	fmt.Println("  admin list-admins           - List all admins")
}

func execute(ctx context.Context, users repository.UserRepository, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}

	switch args[0] {
	case "create-admin":
		admin, created, err := bootstrap.EnsureAdmin(ctx, users, bootstrap.AdminFromConfig(cfg))
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(out, "Admin with email %s already exists\n", admin.Email)
			return nil
		}
		fmt.Fprintf(out, "Admin account created: %s <%s>\n", admin.Username, admin.Email)
		fmt.Fprintln(out, "Change this password after first login.")

	case "promote", "demote":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin %s <username>", args[0])
		}
		role := models.RoleAdmin
		if args[0] == "demote" {
			role = models.RoleUser
		}
		user, err := bootstrap.SetRole(ctx, users, args[1], role)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (ID: %s) is now %s\n", user.Username, user.ID, user.Role)

	case "list-admins":
		admins, err := bootstrap.ListAdmins(ctx, users)
		if err != nil {
			return fmt.Errorf("failed to fetch admins: %w", err)
		}
		if len(admins) == 0 {
			fmt.Fprintln(out, "No admins found in the system")
			return nil
		}
		fmt.Fprintf(out, "Admins (%d):\n", len(admins))
		for _, a := range admins {
			fmt.Fprintf(out, "  %s  %s <%s>\n", a.ID, a.Username, a.Email)
		}

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

// Command seed fills the store with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"devsnippet/internal/bootstrap"
	"devsnippet/internal/config"
	"devsnippet/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	maxLikes := flag.Int("max-likes", 5, "Maximum likes per generated post")
	fixtures := flag.String("fixtures", "", "YAML fixture file to load instead of generated data")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production store")
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = rt.Close() }()

	var summary *seed.Summary
	if *fixtures != "" {
		log.Printf("Loading fixtures from %s", *fixtures)
		fx, loadErr := seed.LoadFixtures(*fixtures)
		if loadErr != nil {
			_ = rt.Close()
			log.Fatalf("Fixture load failed: %v", loadErr)
		}
		summary, err = fx.Apply(ctx, rt.Store)
	} else {
		log.Printf("Target: %d users, %d posts", *numUsers, *numPosts)
		summary, err = seed.Run(ctx, rt.Store, seed.Options{
			NumUsers: *numUsers,
			NumPosts: *numPosts,
			MaxLikes: *maxLikes,
		})
	}
	if err != nil {
		_ = rt.Close()
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %s (password for generated users: %s)", summary, seed.DefaultPassword)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/epic1st/contestcore/config"
	"github.com/epic1st/contestcore/internal/store"
)

func main() {
	upCmd := flag.Bool("up", false, "Run all pending migrations")
	verbose := flag.Bool("verbose", false, "Log every applied migration")
	dryRun := flag.Bool("dry-run", false, "Print what would be applied without running it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host,
		cfg.Database.Port, cfg.Database.Name, cfg.Database.SSLMode)

	migrator, err := store.NewMigrator(dsn, store.WithVerbose(*verbose), store.WithDryRun(*dryRun))
	if err != nil {
		log.Fatalf("Failed to open migrator: %v", err)
	}
	defer migrator.Close()

	log.Printf("[Migrate] Connected to database: %s@%s:%s/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	switch {
	case *upCmd:
		log.Println("[Migrate] Running all pending migrations...")
		if err := migrator.Up(context.Background()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("[Migrate] All migrations completed successfully")

	default:
		fmt.Println("contestcore - Database Migration Tool")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  contestcore-migrate -up              Run all pending migrations")
		fmt.Println("  contestcore-migrate -up -dry-run     Print pending migrations without applying them")
		fmt.Println("  contestcore-migrate -up -verbose     Log every applied migration")
		fmt.Println()
		fmt.Println("Environment variables (or a .env file):")
		fmt.Println("  DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, DB_SSL_MODE")
		os.Exit(1)
	}
}

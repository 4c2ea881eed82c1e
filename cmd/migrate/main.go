package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("warning: .env file not found, using system environment variables")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	case "down":
		runMigrationsDown()
	case "create":
		createMigration()
	default:
		fmt.Println("Usage: migrate [up|down|create]")
		fmt.Println("  up     - Run all pending migrations")
		fmt.Println("  down   - Rollback last migration (not implemented)")
		fmt.Println("  create - Create a new migration file (not implemented)")
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("connecting to database...")

	cfg := config.Load()
	if err := database.Initialize(cfg.DatabaseURL, cfg.Environment); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("database connected")
	log.Println("running migrations...")

	if err := database.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("all migrations completed successfully")
}

func runMigrationsDown() {
	log.Println("migration rollback not implemented")
	log.Println("tip: edit internal/models and re-run `migrate up` for schema changes")
	os.Exit(1)
}

func createMigration() {
	if len(os.Args) < 3 {
		log.Println("migration name required")
		log.Println("usage: migrate create <migration_name>")
		os.Exit(1)
	}

	log.Println("migration file creation not implemented")
	log.Println("tip: add your model to internal/models and it will be auto-migrated")
	os.Exit(1)
}

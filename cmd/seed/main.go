package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/database"
	"github.com/zfogg/sidechain/backend/internal/seed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("warning: .env file not found, using system environment variables")
	}

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev":
		seedDev()
	default:
		fmt.Println("Usage: seed [dev]")
		fmt.Println("  dev - Seed development database with a realistic station/track catalog")
		os.Exit(1)
	}
}

func seedDev() {
	log.Println("seeding development database...")

	cfg := config.Load()
	if err := database.Initialize(cfg.DatabaseURL, cfg.Environment); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("database connected")

	if err := database.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	seeder := seed.NewSeeder(database.DB)
	if err := seeder.SeedDev(); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	log.Println("development database seeded successfully")
}

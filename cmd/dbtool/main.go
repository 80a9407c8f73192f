package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"technician-dispatch-service/internal/adapters/repositories"
	"technician-dispatch-service/internal/platform/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		fatal("DATABASE_URL is required")
	}

	database, err := db.Open(databaseURL)
	if err != nil {
		fatal(err)
	}
	defer database.Close()

	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "data/seeds/schedule.json"
	}

	if err := initAndSeed(database, seedPath); err != nil {
		fatal(err)
	}
}

func initAndSeed(database *sql.DB, seedPath string) error {
	fmt.Println("Initializing database schema...")
	if err := repositories.InitSchema(database); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	fmt.Println("Schema ready.")

	fmt.Println("Seeding database...")
	if err := repositories.SeedFromJSON(database, seedPath); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	fmt.Println("Seeding complete.")

	return nil
}

func fatal(v any) {
	fmt.Fprintln(os.Stderr, v)
	os.Exit(1)
}

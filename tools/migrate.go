package main

import (
	"fmt"
	"os"

	"thaliya-gateway/database"

	"github.com/joho/godotenv"
)

// Standalone migration runner, for deploy pipelines that migrate before
// rolling the gateway.
func main() {
	if len(os.Args) < 2 || os.Args[1] != "migrate" {
		fmt.Println("Usage:")
		fmt.Println("  go run tools/migrate.go migrate - Run database migrations")
		return
	}

	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: no .env file loaded:", err)
	}

	fmt.Println("🚀 Running database migrations...")
	if _, err := database.InitDB(); err != nil {
		fmt.Printf("❌ Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Migration completed successfully!")
}

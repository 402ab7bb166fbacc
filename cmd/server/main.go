package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/david/propscore/internal/api"
	"github.com/david/propscore/internal/config"
	"github.com/david/propscore/internal/db"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("internal/config/config/app.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	srv := api.NewServer(pool, cfg)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}

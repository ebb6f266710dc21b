package main

import (
	"log"
	"os"

	"github.com/noah-isme/homeroom-api/internal/db"
	"github.com/noah-isme/homeroom-api/pkg/config"
	"github.com/noah-isme/homeroom-api/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	conn, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer conn.Close()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	switch direction {
	case "up":
		err = db.Migrate(conn)
	case "down":
		err = db.Rollback(conn)
	default:
		log.Fatalf("unknown direction %q, want up or down", direction)
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Printf("migration %s complete", direction)
}

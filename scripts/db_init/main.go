package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	dbfs "github.com/garnizeh/jobmarket/db"
	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/config"
	"github.com/garnizeh/jobmarket/internal/db"
	"github.com/garnizeh/jobmarket/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Bootstrap.Email != "" {
		accounts := auth.NewAccounts(sqlite.New(database, nil), auth.NewTokens(cfg.JWTSecret, cfg.TokenDuration))
		created, err := accounts.EnsureSuperadmin(ctx, cfg.Bootstrap.Name, cfg.Bootstrap.Email, cfg.Bootstrap.Password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bootstrap error: %v\n", err)
			os.Exit(1)
		}
		if created {
			fmt.Printf("Superadmin %s created.\n", cfg.Bootstrap.Email)
		}
	}

	fmt.Println("Database initialized successfully.")
}

// Command seed populates the violations table with the sample dataset.
// It takes no flags and is safe to run against an empty database.
package main

import (
	"log"
	"log/slog"
	"os"

	"ncapportal/internal/util"
	"ncapportal/services/portal/internal/app"
	"ncapportal/services/portal/internal/config"
)

func main() {
	path := os.Getenv("PORTAL_CONFIG")
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		JWTSecret:   cfg.JWTSecret,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	n, err := appCore.Seed()
	if err != nil {
		log.Fatalf("failed to seed violations: %v", err)
	}
	slog.Info("seeded sample violations", "count", n)
}

package main

import (
	"os"

	"consult-booking/core/config"
	"consult-booking/core/database"
	"consult-booking/core/logger"
)

func main() {
	cfg, err := config.Init()
	if err != nil {
		logger.Error("Migrate:Config:Error", "error", err)
		os.Exit(1)
	}
	_ = logger.Init(cfg.App.Env)
	defer logger.Sync()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		dbURL = database.URL(cfg.Database)
	}

	if err := database.Migrate(dbURL, direction); err != nil {
		os.Exit(1)
	}
}

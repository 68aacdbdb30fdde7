package main

import (
	"os"

	"consult-booking/core/config"
	"consult-booking/core/logger"
	"consult-booking/core/server"

	_ "time/tzdata"
)

// @title Consult Booking API
// @version 1.0
// @description Booking and availability engine for the consultancy marketplace

// @contact.name API Support
// @contact.email support@consult-booking.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:7070
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Example: "Bearer {token}"

func main() {
	cfg, err := config.Init()
	if err != nil {
		logger.Error("load config error", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.App.Env); err != nil {
		logger.Error("init logger error", err)
	}
	defer logger.Sync()

	if err := server.Run(); err != nil {
		logger.Error("run server error", err)
		logger.Sync()
		os.Exit(1)
	}
}

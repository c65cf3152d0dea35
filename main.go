package main

import (
	"fmt"
	"time"

	"thaliya-gateway/config"
	"thaliya-gateway/database"
	"thaliya-gateway/logger"
	"thaliya-gateway/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
)

func main() {
	app := fiber.New(fiber.Config{
		ReadBufferSize:  32768,
		WriteBufferSize: 32768,
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
	})

	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", err)
		fmt.Println("Error loading .env file", err)
	}

	cfg := config.Load()

	logger.Success("Server is running on ip: " + cfg.AppHost + " port: " + cfg.AppPort +
		"\n\t\t\t\t\t\t******************************************************************************************\n")

	db, err := database.InitDB()
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	services := routes.SetupRoutes(app, db, cfg)

	go runMaintenanceSweep(services)

	if err := app.Listen(cfg.AppHost + ":" + cfg.AppPort); err != nil {
		logger.Fatal("Server stopped: " + err.Error())
	}
}

// runMaintenanceSweep garbage-collects expired sessions, wizard records,
// OTPs, and old rate-limit rows. Failures are logged and retried on the
// next tick.
func runMaintenanceSweep(services *routes.Services) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := services.Sessions.CleanupExpired(); err != nil {
			logger.Error("Session cleanup failed", err)
		}
		if err := services.Temp.CleanupExpired(); err != nil {
			logger.Error("Auth record cleanup failed", err)
		}
		if err := services.OTP.CleanupExpired(); err != nil {
			logger.Error("OTP cleanup failed", err)
		}
		if err := services.Limiter.CleanupOld(); err != nil {
			logger.Error("Rate limit cleanup failed", err)
		}
	}
}

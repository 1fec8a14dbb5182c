package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/golestan/internal/config"
	"github.com/example/golestan/internal/database"
	"github.com/example/golestan/internal/invoice"
	"github.com/example/golestan/internal/otp"
	"github.com/example/golestan/internal/routes"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName: "Golestan Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	challenges := otp.NewRedisStore(cfg.RedisAddr)

	renderer := invoice.NewPDFRenderer(cfg.InvoiceFontPath)
	formatter := invoice.NewFormatter(renderer, invoice.Party{
		Name:    cfg.StoreName,
		Phone:   cfg.StorePhone,
		Email:   cfg.StoreEmail,
		Address: cfg.StoreAddress,
		TaxID:   cfg.StoreTaxID,
	})

	routes.Register(app, db, cfg, challenges, formatter)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/golestan/internal/config"
	"github.com/example/golestan/internal/handlers"
	"github.com/example/golestan/internal/invoice"
	"github.com/example/golestan/internal/middleware"
	"github.com/example/golestan/internal/models"
	"github.com/example/golestan/internal/otp"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, challenges otp.ChallengeStore, formatter *invoice.Formatter) {
	authHandler := handlers.NewAuthHandler(db, cfg, challenges)
	orderHandler := handlers.NewOrderHandler(db)
	productHandler := handlers.NewProductHandler(db)
	invoiceHandler := handlers.NewInvoiceHandler(db, formatter)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/otp/send", authHandler.SendOTP)
	auth.Post("/otp/verify", authHandler.VerifyOTP)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/login", authHandler.Login)

	// Public catalog
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/auth/logout", authHandler.Logout)

	seller := middleware.RequireRole(models.RoleSeller, models.RoleAdmin)
	protected.Post("/products", seller, productHandler.CreateProduct)
	protected.Patch("/products/:id", seller, productHandler.UpdateProduct)
	protected.Delete("/products/:id", seller, productHandler.DeleteProduct)

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/seller-orders", seller, orderHandler.ListSellerOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Patch("/orders/:id/status", seller, orderHandler.UpdateStatus)
	protected.Post("/orders/:id/cancel", orderHandler.CancelOrder)
	protected.Get("/orders/:id/invoice", invoiceHandler.GetInvoice)
}

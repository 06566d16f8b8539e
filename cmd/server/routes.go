package main

import (
	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/config"
	"pos-backend/internal/dashboard"
	"pos-backend/internal/inventory"
	"pos-backend/internal/models"
	"pos-backend/internal/sales"
	"pos-backend/internal/wastage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type routeDeps struct {
	sales   *sales.Service
	wastage *wastage.Service
}

func registerRoutes(app *fiber.App, cfg *config.Config, db *gorm.DB, deps routeDeps) {
	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": config.ServiceName, "version": config.ServiceVersion})
	})

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))
	ownerOnly := auth.RequireRole(models.RoleOwner)

	protected.Get("/auth/me", auth.MeHandler(db))

	// Catalog
	protected.Get("/items", inventory.ListItemsHandler(db))
	protected.Get("/items/availability", inventory.AvailabilityHandler(db))
	protected.Post("/items", ownerOnly, inventory.CreateItemHandler(db))
	protected.Get("/recipes", inventory.ListRecipesHandler(db))
	protected.Get("/recipes/:id/ingredients", inventory.ListRecipeIngredientsHandler(db))
	protected.Post("/recipes", ownerOnly, inventory.CreateRecipeHandler(db))

	// Stock
	protected.Get("/items/:id/stock", inventory.GetStockHandler(db))
	protected.Get("/items/:id/stock/movements", inventory.ListMovementsHandler(db))
	protected.Post("/items/:id/stock/increase", inventory.IncreaseStockHandler(db))

	// Batches
	protected.Get("/batches", inventory.ListBatchesHandler(db))
	protected.Post("/batches", inventory.CreateBatchHandler(db))
	protected.Put("/batches/:id/portions", ownerOnly, inventory.SetBatchPortionsHandler(db))

	// Sales
	protected.Post("/sales", sales.CreateSaleHandler(deps.sales))
	protected.Get("/sales", sales.ListSalesHandler(deps.sales))
	protected.Get("/sales/:reference", sales.GetSaleHandler(deps.sales))

	// Wastage
	protected.Post("/wastages", wastage.CreateWastageHandler(deps.wastage))
	protected.Get("/wastages", wastage.ListWastagesHandler(deps.wastage))

	// Dashboard
	protected.Get("/dashboard/sales-chart", ownerOnly, dashboard.SalesChartHandler(db))

	// Audit logs
	protected.Get("/audit-logs", ownerOnly, audit.ListAuditLogsHandler(db))
}

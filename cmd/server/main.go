package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pos-backend/internal/config"
	"pos-backend/internal/database"
	"pos-backend/internal/events"
	"pos-backend/internal/fulfillment"
	"pos-backend/internal/logging"
	"pos-backend/internal/observability"
	"pos-backend/internal/sales"
	"pos-backend/internal/wastage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Error("tracing disabled", zap.Error(err))
	}

	database.Init(cfg, logger)

	publisher, err := events.NewPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("could not create sale event publisher", zap.Error(err))
	}

	store := fulfillment.NewGormStore(database.DB, cfg.DBLockTimeout)
	engine := fulfillment.NewEngine(store, logger.Named("fulfillment"), fulfillment.Options{
		EmptyRecipeFallback: cfg.EmptyRecipeFallback,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler(logger),
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	registerRoutes(app, cfg, database.DB, routeDeps{
		sales:   sales.NewService(database.DB, store, engine, publisher, logger.Named("sales")),
		wastage: wastage.NewService(database.DB, logger.Named("wastage")),
	})

	go func() {
		logger.Info("server listening", zap.String("port", cfg.HTTPPort))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Error("close sale event publisher", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", zap.Error(err))
	}
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if errors.As(err, &e) {
			return c.Status(e.Code).JSON(fiber.Map{
				"error": e.Message,
			})
		}
		logger.Error("unexpected error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unexpected server error",
		})
	}
}

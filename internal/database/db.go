package database

import (
	"fmt"

	"pos-backend/internal/config"
	"pos-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config, log *zap.Logger) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("could not connect to the database", zap.Error(err))
	}

	if err := Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	DB = db
	log.Info("database connected, migrations applied")
}

// Migrate creates or updates every table the service owns. It is safe to run
// on each start.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Item{},
		&models.StockMovement{},
		&models.StockBalance{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.Batch{},
		&models.Wastage{},
		&models.Sale{},
		&models.SaleItem{},
		&models.SaleDecrement{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// Active-batch lookups only ever touch rows with portions left.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_batches_active
		ON batches (company_id, recipe_id, expiry_date) WHERE portions_left > 0`).Error; err != nil {
		return fmt.Errorf("create idx_batches_active: %w", err)
	}

	return nil
}

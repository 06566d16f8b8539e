package fulfillment

import (
	"context"
	"fmt"
	"time"

	"pos-backend/internal/batch"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"
	"pos-backend/internal/stock"

	"gorm.io/gorm"
)

type StockLedger interface {
	CurrentQuantity(ctx context.Context, companyID, itemID uint) (int64, error)
	Decrease(ctx context.Context, companyID, itemID uint, qty int64, note string) (models.StockMovement, error)
}

type BatchLedger interface {
	ListActiveBatches(ctx context.Context, companyID, recipeID uint) ([]models.Batch, error)
	SetPortionsLeft(ctx context.Context, companyID, batchID uint, portions int64) error
}

type RecipeCatalog interface {
	Item(ctx context.Context, companyID, itemID uint) (models.Item, error)
	Recipe(ctx context.Context, companyID, recipeID uint) (models.Recipe, error)
	RecipeForItem(ctx context.Context, companyID, itemID uint) (models.Recipe, error)
	IngredientsOf(ctx context.Context, companyID, recipeID uint) ([]models.RecipeIngredient, error)
}

// Ledgers are the collaborators of one line item, all bound to the same unit
// of work.
type Ledgers struct {
	Stock   StockLedger
	Batches BatchLedger
	Recipes RecipeCatalog
}

// Store runs fn as one atomic unit. Reads made through the ledgers must stay
// valid until fn returns, either by row locks or by conditional writes.
type Store interface {
	InTx(ctx context.Context, fn func(Ledgers) error) error
}

// GormStore runs every unit of work in a database transaction, or in a
// savepoint when db is already a transaction.
type GormStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *GormStore {
	return &GormStore{db: db, lockTimeout: lockTimeout}
}

// WithDB binds a copy of the store to db, typically an enclosing transaction.
func (s *GormStore) WithDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db, lockTimeout: s.lockTimeout}
}

func (s *GormStore) InTx(ctx context.Context, fn func(Ledgers) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(Ledgers{
			Stock:   stock.NewLedger(tx).Locking(),
			Batches: batch.NewLedger(tx).Locking(),
			Recipes: catalog.New(tx),
		})
	})
}

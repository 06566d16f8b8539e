package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound        = errors.New("batch not found")
	ErrNegativePortion = errors.New("batch: portions cannot be negative")
)

// fulfillmentOrder puts the soonest expiry first and undated batches last.
// Ties keep creation order.
const fulfillmentOrder = "CASE WHEN expiry_date IS NULL THEN 1 ELSE 0 END, expiry_date ASC, created_at ASC, id ASC"

type Ledger struct {
	db      *gorm.DB
	locking bool
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Locking returns a ledger that row-locks the batches it lists.
func (l *Ledger) Locking() *Ledger {
	return &Ledger{db: l.db, locking: true}
}

// ListActiveBatches returns the batches of a recipe with portions left, in the
// order they should be drawn down.
func (l *Ledger) ListActiveBatches(ctx context.Context, companyID, recipeID uint) ([]models.Batch, error) {
	q := l.db.WithContext(ctx)
	if l.locking {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var batches []models.Batch
	err := q.Where("company_id = ? AND recipe_id = ? AND portions_left > 0", companyID, recipeID).
		Order(fulfillmentOrder).
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("list active batches of recipe %d: %w", recipeID, err)
	}
	return batches, nil
}

// SetPortionsLeft overwrites the remaining portions of a batch. The caller
// computes the new value.
func (l *Ledger) SetPortionsLeft(ctx context.Context, companyID, batchID uint, portions int64) error {
	if portions < 0 {
		return ErrNegativePortion
	}

	res := l.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ? AND company_id = ?", batchID, companyID).
		Update("portions_left", portions)
	if res.Error != nil {
		return fmt.Errorf("set portions of batch %d: %w", batchID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	return nil
}

type CreateInput struct {
	RecipeID   uint
	Portions   int64
	ExpiryDate *time.Time
}

func (l *Ledger) Create(ctx context.Context, companyID uint, in CreateInput) (models.Batch, error) {
	if in.Portions < 0 {
		return models.Batch{}, ErrNegativePortion
	}

	b := models.Batch{
		CompanyID:    companyID,
		RecipeID:     in.RecipeID,
		PortionsLeft: in.Portions,
		ExpiryDate:   in.ExpiryDate,
	}
	if err := l.db.WithContext(ctx).Create(&b).Error; err != nil {
		return models.Batch{}, fmt.Errorf("create batch: %w", err)
	}
	return b, nil
}

func (l *Ledger) Get(ctx context.Context, companyID, batchID uint) (models.Batch, error) {
	q := l.db.WithContext(ctx)
	if l.locking {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var b models.Batch
	err := q.Where("id = ? AND company_id = ?", batchID, companyID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Batch{}, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return models.Batch{}, fmt.Errorf("get batch %d: %w", batchID, err)
	}
	return b, nil
}

type ListFilter struct {
	RecipeID   uint // 0 = all recipes
	ActiveOnly bool
}

// List returns batches for reporting, in fulfillment order.
func (l *Ledger) List(ctx context.Context, companyID uint, f ListFilter) ([]models.Batch, error) {
	q := l.db.WithContext(ctx).Where("company_id = ?", companyID)
	if f.RecipeID != 0 {
		q = q.Where("recipe_id = ?", f.RecipeID)
	}
	if f.ActiveOnly {
		q = q.Where("portions_left > 0")
	}

	var batches []models.Batch
	if err := q.Order(fulfillmentOrder).Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// PortionsByRecipe sums the portions left in active batches, keyed by recipe
// id. Recipes without active batches are absent.
func (l *Ledger) PortionsByRecipe(ctx context.Context, companyID uint) (map[uint]int64, error) {
	var rows []struct {
		RecipeID uint
		Portions int64
	}
	err := l.db.WithContext(ctx).
		Model(&models.Batch{}).
		Select("recipe_id, SUM(portions_left) AS portions").
		Where("company_id = ? AND portions_left > 0", companyID).
		Group("recipe_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum portions by recipe: %w", err)
	}

	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.RecipeID] = r.Portions
	}
	return out, nil
}

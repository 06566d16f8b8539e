package stock

import (
	"context"
	"errors"
	"fmt"

	"pos-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidQuantity = errors.New("stock: quantity must be positive")

// InsufficientStockError is returned when a decrease asks for more than is on hand.
type InsufficientStockError struct {
	ItemID    uint
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: missing %d units of item %d (requested %d, available %d)",
		e.Deficit(), e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Deficit() int64 { return e.Requested - e.Available }

// Ledger reads and appends stock movements for (company, item) pools.
//
// The on-hand quantity is the signed sum of movements. It is materialized in
// stock_balances, which is updated in the same transaction as each movement.
// In locking mode reads take a row lock on the balance so a later write in
// the same transaction cannot be based on a stale quantity.
type Ledger struct {
	db      *gorm.DB
	locking bool
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Locking returns a ledger whose reads lock the balance row (SELECT ... FOR UPDATE).
// Only meaningful when the ledger is bound to a transaction.
func (l *Ledger) Locking() *Ledger {
	return &Ledger{db: l.db, locking: true}
}

func (l *Ledger) CurrentQuantity(ctx context.Context, companyID, itemID uint) (int64, error) {
	bal, err := l.balance(l.db.WithContext(ctx), companyID, itemID, l.locking)
	if err != nil {
		return 0, err
	}
	return bal.Quantity, nil
}

// ReplayQuantity recomputes the on-hand quantity from the movement log alone.
func (l *Ledger) ReplayQuantity(ctx context.Context, companyID, itemID uint) (int64, error) {
	var total int64
	err := l.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("company_id = ? AND item_id = ?", companyID, itemID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("replay stock of item %d: %w", itemID, err)
	}
	return total, nil
}

func (l *Ledger) Increase(ctx context.Context, companyID, itemID uint, qty int64, note string) (models.StockMovement, error) {
	if qty <= 0 {
		return models.StockMovement{}, ErrInvalidQuantity
	}

	var mv models.StockMovement
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureBalance(tx, companyID, itemID); err != nil {
			return err
		}

		res := tx.Model(&models.StockBalance{}).
			Where("company_id = ? AND item_id = ?", companyID, itemID).
			Updates(map[string]any{
				"quantity": gorm.Expr("quantity + ?", qty),
				"version":  gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("update balance of item %d: %w", itemID, res.Error)
		}

		mv = models.StockMovement{
			CompanyID: companyID,
			ItemID:    itemID,
			Quantity:  qty,
			Kind:      models.MovementIn,
			Note:      note,
		}
		if err := tx.Create(&mv).Error; err != nil {
			return fmt.Errorf("record in movement of item %d: %w", itemID, err)
		}
		return nil
	})
	return mv, err
}

// Decrease appends an out movement of qty. It fails with *InsufficientStockError,
// leaving the ledger untouched, when qty exceeds the current quantity.
func (l *Ledger) Decrease(ctx context.Context, companyID, itemID uint, qty int64, note string) (models.StockMovement, error) {
	if qty <= 0 {
		return models.StockMovement{}, ErrInvalidQuantity
	}

	var mv models.StockMovement
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := l.balance(tx, companyID, itemID, true)
		if err != nil {
			return err
		}
		if qty > bal.Quantity {
			return &InsufficientStockError{ItemID: itemID, Requested: qty, Available: bal.Quantity}
		}

		// The quantity guard keeps the balance non-negative on databases
		// without row locks.
		res := tx.Model(&models.StockBalance{}).
			Where("id = ? AND quantity >= ?", bal.ID, qty).
			Updates(map[string]any{
				"quantity": gorm.Expr("quantity - ?", qty),
				"version":  gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("update balance of item %d: %w", itemID, res.Error)
		}
		if res.RowsAffected == 0 {
			current, err := l.balance(tx, companyID, itemID, false)
			if err != nil {
				return err
			}
			return &InsufficientStockError{ItemID: itemID, Requested: qty, Available: current.Quantity}
		}

		mv = models.StockMovement{
			CompanyID: companyID,
			ItemID:    itemID,
			Quantity:  -qty,
			Kind:      models.MovementOut,
			Note:      note,
		}
		if err := tx.Create(&mv).Error; err != nil {
			return fmt.Errorf("record out movement of item %d: %w", itemID, err)
		}
		return nil
	})
	return mv, err
}

// Movements lists the movement history of an item, newest first.
func (l *Ledger) Movements(ctx context.Context, companyID, itemID uint, limit int) ([]models.StockMovement, error) {
	q := l.db.WithContext(ctx).
		Where("company_id = ? AND item_id = ?", companyID, itemID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.StockMovement
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list movements of item %d: %w", itemID, err)
	}
	return out, nil
}

// Balances returns the current quantity of every item of the company that has
// stock history, keyed by item id.
func (l *Ledger) Balances(ctx context.Context, companyID uint) (map[uint]int64, error) {
	var rows []models.StockBalance
	err := l.db.WithContext(ctx).
		Select("item_id", "quantity").
		Where("company_id = ?", companyID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}

	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.ItemID] = r.Quantity
	}
	return out, nil
}

func (l *Ledger) balance(db *gorm.DB, companyID, itemID uint, lock bool) (models.StockBalance, error) {
	q := db
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var bal models.StockBalance
	err := q.Where("company_id = ? AND item_id = ?", companyID, itemID).Take(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StockBalance{CompanyID: companyID, ItemID: itemID}, nil
	}
	if err != nil {
		return models.StockBalance{}, fmt.Errorf("read balance of item %d: %w", itemID, err)
	}
	return bal, nil
}

func ensureBalance(tx *gorm.DB, companyID, itemID uint) error {
	bal := models.StockBalance{CompanyID: companyID, ItemID: itemID}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "item_id"}},
		DoNothing: true,
	}).Create(&bal).Error
	if err != nil {
		return fmt.Errorf("create balance of item %d: %w", itemID, err)
	}
	return nil
}

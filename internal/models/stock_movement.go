package models

import "time"

type MovementKind string

const (
	MovementIn  MovementKind = "in"
	MovementOut MovementKind = "out"
)

// StockMovement is an immutable ledger entry. Rows are only ever inserted.
type StockMovement struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	CompanyID uint         `gorm:"index:idx_movements_company_item;not null" json:"company_id"`
	ItemID    uint         `gorm:"index:idx_movements_company_item;not null" json:"item_id"`
	Item      Item         `json:"-"`
	Quantity  int64        `gorm:"not null" json:"quantity"` // signed: out movements are negative
	Kind      MovementKind `gorm:"size:10;not null" json:"kind"`
	Note      string       `gorm:"size:255" json:"note"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
}

// StockBalance is the running total of StockMovement for one (company, item),
// written in the same transaction as every movement.
type StockBalance struct {
	ID        uint  `gorm:"primaryKey"`
	CompanyID uint  `gorm:"not null;uniqueIndex:idx_balances_company_item"`
	ItemID    uint  `gorm:"not null;uniqueIndex:idx_balances_company_item"`
	Quantity  int64 `gorm:"not null;default:0;check:quantity >= 0"`
	Version   int64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

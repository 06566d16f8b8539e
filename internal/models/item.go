package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	ItemKindBatchPortion ItemKind = "batch_portion" // served from prepared batches
	ItemKindUnit         ItemKind = "unit"          // sold as-is from stock
	ItemKindIngredient   ItemKind = "ingredient"    // consumed by recipes, sellable too
)

func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindBatchPortion, ItemKindUnit, ItemKindIngredient:
		return true
	}
	return false
}

// StockTracked reports whether demand for the kind is served by the stock ledger.
func (k ItemKind) StockTracked() bool {
	return k == ItemKindUnit || k == ItemKindIngredient
}

type Item struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CompanyID uint            `gorm:"index;not null;uniqueIndex:idx_items_company_name" json:"company_id"`
	Name      string          `gorm:"size:100;not null;uniqueIndex:idx_items_company_name" json:"name"`
	Kind      ItemKind        `gorm:"size:20;not null;index" json:"kind"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Active    bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentMixed PaymentMethod = "mixed"
)

type Sale struct {
	ID         uint            `gorm:"primaryKey"`
	CompanyID  uint            `gorm:"index;not null"`
	Reference  uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	UserID     uint            `gorm:"index"`
	Method     PaymentMethod   `gorm:"size:10;not null"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AmountCash decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AmountCard decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes      string          `gorm:"size:255"`
	CreatedAt  time.Time       `gorm:"index"`

	Items      []SaleItem
	Decrements []SaleDecrement
}

type SaleItem struct {
	ID        uint            `gorm:"primaryKey"`
	SaleID    uint            `gorm:"index;not null"`
	ItemID    uint            `gorm:"index;not null"`
	Kind      ItemKind        `gorm:"size:20;not null"`
	RecipeID  *uint
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// SaleDecrement persists one applied inventory mutation of a sale.
type SaleDecrement struct {
	ID        uint   `gorm:"primaryKey"`
	SaleID    uint   `gorm:"index;not null"`
	LineIndex int    `gorm:"not null"`
	Type      string `gorm:"size:20;not null"`
	ItemID    *uint
	BatchID   *uint
	Quantity  int64 `gorm:"not null"`
}

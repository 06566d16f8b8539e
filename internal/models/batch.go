package models

import "time"

// Batch is a produced lot of a recipe. Exhausted batches (PortionsLeft = 0)
// are kept for audit and expiry reporting.
type Batch struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CompanyID    uint       `gorm:"index:idx_batches_company_recipe;not null" json:"company_id"`
	RecipeID     uint       `gorm:"index:idx_batches_company_recipe;not null" json:"recipe_id"`
	Recipe       Recipe     `json:"-"`
	PortionsLeft int64      `gorm:"not null;check:portions_left >= 0" json:"portions_left"`
	ExpiryDate   *time.Time `gorm:"index" json:"expiry_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (b Batch) Exhausted() bool { return b.PortionsLeft == 0 }

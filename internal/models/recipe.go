package models

import "time"

type Recipe struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CompanyID        uint      `gorm:"index;not null" json:"company_id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	ItemID           *uint     `gorm:"index" json:"item_id"` // batch_portion item this recipe produces
	PortionsPerBatch int64     `gorm:"not null;default:1" json:"portions_per_batch"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Ingredients []RecipeIngredient `json:"ingredients,omitempty"`
}

type RecipeIngredient struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RecipeID       uint      `gorm:"index;not null" json:"recipe_id"`
	IngredientID   uint      `gorm:"index;not null" json:"ingredient_id"`
	Ingredient     Item      `gorm:"foreignKey:IngredientID" json:"-"`
	QuantityNeeded int64     `gorm:"not null" json:"quantity_needed"` // per portion
	CreatedAt      time.Time `json:"created_at"`
}

package fulfillment

import "pos-backend/internal/models"

// LineItem is one sold (item, quantity) entry handed to the engine.
type LineItem struct {
	ItemID   uint
	Kind     models.ItemKind
	RecipeID *uint // batch_portion only; enables the ingredient fallback
	Quantity int64
}

type DecrementType string

const (
	DecrementBatch      DecrementType = "batch"
	DecrementStock      DecrementType = "stock"
	DecrementIngredient DecrementType = "ingredient"
)

// DecrementRecord describes one mutation the engine applied.
type DecrementRecord struct {
	Line     int           `json:"line"`
	Type     DecrementType `json:"type"`
	ItemID   uint          `json:"item_id,omitempty"`
	BatchID  uint          `json:"batch_id,omitempty"`
	Quantity int64         `json:"quantity"`
}

package fulfillment

import (
	"errors"
	"fmt"

	"pos-backend/internal/catalog"
	"pos-backend/internal/stock"
)

var (
	ErrInvalidLineItem = errors.New("invalid line item")
	ErrUnknownItem     = catalog.ErrUnknownItem
	ErrUnknownRecipe   = catalog.ErrUnknownRecipe
)

// InsufficientStockError is raised by unit/ingredient lines and by ingredient
// deductions that lose a race after the fallback check.
type InsufficientStockError = stock.InsufficientStockError

// InsufficientPortionsError means the batches could not cover a batch_portion
// line and no ingredient fallback was possible.
type InsufficientPortionsError struct {
	RecipeID  uint
	ItemID    uint
	Requested int64
	Available int64
}

func (e *InsufficientPortionsError) Error() string {
	return fmt.Sprintf("insufficient portions: missing %d portions of item %d (recipe %d, requested %d, available %d)",
		e.Deficit(), e.ItemID, e.RecipeID, e.Requested, e.Available)
}

func (e *InsufficientPortionsError) Deficit() int64 { return e.Requested - e.Available }

// InsufficientIngredientsError names the first ingredient, in recipe order,
// that cannot cover a batch shortfall.
type InsufficientIngredientsError struct {
	RecipeID     uint
	IngredientID uint
	Needed       int64
	Available    int64
}

func (e *InsufficientIngredientsError) Error() string {
	return fmt.Sprintf("insufficient ingredients: missing %d units of ingredient %d for recipe %d (needed %d, available %d)",
		e.Deficit(), e.IngredientID, e.RecipeID, e.Needed, e.Available)
}

func (e *InsufficientIngredientsError) Deficit() int64 { return e.Needed - e.Available }

// LineError ties a failure to the line item that caused it. Lines before
// Index were committed; nothing of line Index was applied.
type LineError struct {
	Index  int
	ItemID uint
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (item %d): %v", e.Index, e.ItemID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Code maps an engine error to a stable machine-readable code.
func Code(err error) string {
	var (
		stockErr       *InsufficientStockError
		portionsErr    *InsufficientPortionsError
		ingredientsErr *InsufficientIngredientsError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &portionsErr):
		return "insufficient_portions"
	case errors.As(err, &ingredientsErr):
		return "insufficient_ingredients"
	case errors.Is(err, ErrUnknownRecipe):
		return "unknown_recipe"
	case errors.Is(err, ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, ErrInvalidLineItem):
		return "invalid_line_item"
	}
	return "internal"
}

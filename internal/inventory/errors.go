package inventory

import (
	"errors"

	"pos-backend/internal/batch"
	"pos-backend/internal/catalog"
	"pos-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
)

// httpError maps ledger and catalog errors onto HTTP statuses. Anything
// unknown is left for the app's error handler.
func httpError(err error) error {
	var insufficient *stock.InsufficientStockError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, batch.ErrNegativePortion):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrUnknownItem),
		errors.Is(err, catalog.ErrUnknownRecipe),
		errors.Is(err, batch.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &insufficient):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

package inventory

import (
	"fmt"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"
	"pos-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type IncreaseStockRequest struct {
	Quantity int64  `json:"quantity"`
	Note     string `json:"note"` // e.g. supplier invoice number
}

type StockResponse struct {
	ItemID   uint   `json:"item_id"`
	ItemName string `json:"item_name"`
	Quantity int64  `json:"quantity"`
	Replayed int64  `json:"replayed"` // recomputed from the movement history
}

// POST /api/items/:id/stock/increase
func IncreaseStockHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}
		itemID, err := paramID(c)
		if err != nil {
			return err
		}

		var body IncreaseStockRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		ctx := c.UserContext()
		var mv models.StockMovement
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			it, err := catalog.New(tx).Item(ctx, companyID, itemID)
			if err != nil {
				return err
			}
			if !it.Kind.StockTracked() {
				return fmt.Errorf("%w: %s items are stocked through batches", catalog.ErrInvalid, it.Kind)
			}

			if mv, err = stock.NewLedger(tx).Increase(ctx, companyID, itemID, body.Quantity, body.Note); err != nil {
				return err
			}

			return audit.WriteLog(tx, audit.LogOptions{
				CompanyID:   companyID,
				UserID:      auth.UserID(c),
				EntityType:  "stock_movement",
				EntityID:    mv.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Restock: %s +%d", it.Name, body.Quantity),
				After:       mv,
			})
		})
		if err != nil {
			return httpError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(mv)
	}
}

// GET /api/items/:id/stock
func GetStockHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}
		itemID, err := paramID(c)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		it, err := catalog.New(db).Item(ctx, companyID, itemID)
		if err != nil {
			return httpError(err)
		}

		ledger := stock.NewLedger(db)
		current, err := ledger.CurrentQuantity(ctx, companyID, itemID)
		if err != nil {
			return err
		}
		replayed, err := ledger.ReplayQuantity(ctx, companyID, itemID)
		if err != nil {
			return err
		}

		return c.JSON(StockResponse{ItemID: it.ID, ItemName: it.Name, Quantity: current, Replayed: replayed})
	}
}

// GET /api/items/:id/stock/movements?limit=50
func ListMovementsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}
		itemID, err := paramID(c)
		if err != nil {
			return err
		}

		movements, err := stock.NewLedger(db).Movements(c.UserContext(), companyID, itemID, c.QueryInt("limit", 100))
		if err != nil {
			return err
		}
		return c.JSON(movements)
	}
}

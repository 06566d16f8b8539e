package inventory

import (
	"fmt"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateItemRequest struct {
	Name  string          `json:"name"`
	Kind  models.ItemKind `json:"kind"` // batch_portion | unit | ingredient
	Price decimal.Decimal `json:"price"`
}

// POST /api/items
func CreateItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		var body CreateItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var it models.Item
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			created, err := catalog.New(tx).CreateItem(c.UserContext(), companyID, catalog.ItemInput{
				Name:  body.Name,
				Kind:  body.Kind,
				Price: body.Price,
			})
			if err != nil {
				return err
			}
			it = created
			return audit.WriteLog(tx, audit.LogOptions{
				CompanyID:   companyID,
				UserID:      auth.UserID(c),
				EntityType:  "item",
				EntityID:    it.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Item created: %s (%s)", it.Name, it.Kind),
				After:       it,
			})
		})
		if err != nil {
			return httpError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(it)
	}
}

// GET /api/items?kind=unit&active=true
func ListItemsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		kind := models.ItemKind(c.Query("kind"))
		if kind != "" && !kind.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "unknown kind")
		}

		items, err := catalog.New(db).ListItems(c.UserContext(), companyID, kind, c.QueryBool("active", false))
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}

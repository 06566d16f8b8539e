package inventory

import (
	"fmt"
	"time"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/batch"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateBatchRequest struct {
	RecipeID   uint   `json:"recipe_id"`
	Portions   *int64 `json:"portions"`    // defaults to the recipe's portions_per_batch
	ExpiryDate string `json:"expiry_date"` // "2026-01-31", optional
}

type SetPortionsRequest struct {
	PortionsLeft int64  `json:"portions_left"`
	Note         string `json:"note"`
}

// POST /api/batches
func CreateBatchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		var body CreateBatchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var expiry *time.Time
		if body.ExpiryDate != "" {
			d, err := time.Parse("2006-01-02", body.ExpiryDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "expiry_date must be YYYY-MM-DD")
			}
			expiry = &d
		}

		ctx := c.UserContext()
		var b models.Batch
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := catalog.New(tx).Recipe(ctx, companyID, body.RecipeID)
			if err != nil {
				return err
			}
			portions := r.PortionsPerBatch
			if body.Portions != nil {
				portions = *body.Portions
			}

			created, err := batch.NewLedger(tx).Create(ctx, companyID, batch.CreateInput{
				RecipeID:   r.ID,
				Portions:   portions,
				ExpiryDate: expiry,
			})
			if err != nil {
				return err
			}
			b = created

			return audit.WriteLog(tx, audit.LogOptions{
				CompanyID:   companyID,
				UserID:      auth.UserID(c),
				EntityType:  "batch",
				EntityID:    b.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Batch of %s: %d portions", r.Name, b.PortionsLeft),
				After:       b,
			})
		})
		if err != nil {
			return httpError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

// GET /api/batches?recipe_id=3&active=true
func ListBatchesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		batches, err := batch.NewLedger(db).List(c.UserContext(), companyID, batch.ListFilter{
			RecipeID:   uint(max(0, c.QueryInt("recipe_id"))),
			ActiveOnly: c.QueryBool("active", false),
		})
		if err != nil {
			return err
		}
		return c.JSON(batches)
	}
}

// PUT /api/batches/:id/portions
// Explicit correction after a recount. Sales never go through here.
func SetBatchPortionsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}
		batchID, err := paramID(c)
		if err != nil {
			return err
		}

		var body SetPortionsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		ctx := c.UserContext()
		var after models.Batch
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ledger := batch.NewLedger(tx).Locking()
			before, err := ledger.Get(ctx, companyID, batchID)
			if err != nil {
				return err
			}
			if err := ledger.SetPortionsLeft(ctx, companyID, batchID, body.PortionsLeft); err != nil {
				return err
			}
			if after, err = ledger.Get(ctx, companyID, batchID); err != nil {
				return err
			}

			return audit.WriteLog(tx, audit.LogOptions{
				CompanyID:   companyID,
				UserID:      auth.UserID(c),
				EntityType:  "batch",
				EntityID:    batchID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Batch %d corrected: %d -> %d portions. %s", batchID, before.PortionsLeft, after.PortionsLeft, body.Note),
				Before:      before,
				After:       after,
			})
		})
		if err != nil {
			return httpError(err)
		}

		return c.JSON(after)
	}
}

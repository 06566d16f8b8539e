package wastage

import (
	"errors"

	"pos-backend/internal/auth"
	"pos-backend/internal/batch"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateWastageRequest struct {
	SourceType models.WastageSource `json:"source_type"` // batch | item
	SourceID   uint                 `json:"source_id"`
	Quantity   int64                `json:"quantity"`
	Reason     models.WastageReason `json:"reason"`
	Note       string               `json:"note"`
}

// POST /api/wastages
func CreateWastageHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		var body CreateWastageRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.SourceID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "source_id is required")
		}

		w, err := svc.Register(c.UserContext(), companyID, auth.UserID(c), Input{
			SourceType: body.SourceType,
			SourceID:   body.SourceID,
			Quantity:   body.Quantity,
			Reason:     body.Reason,
			Note:       body.Note,
		})
		switch {
		case errors.Is(err, ErrInvalid):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, batch.ErrNotFound), errors.Is(err, catalog.ErrUnknownItem):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case err != nil:
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(w)
	}
}

// GET /api/wastages?source_type=batch&reason=leftover
func ListWastagesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		list, err := svc.List(c.UserContext(), companyID, ListFilter{
			SourceType: models.WastageSource(c.Query("source_type")),
			Reason:     models.WastageReason(c.Query("reason")),
			Limit:      c.QueryInt("limit", 200),
		})
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

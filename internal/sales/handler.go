package sales

import (
	"errors"
	"time"

	"pos-backend/internal/auth"
	"pos-backend/internal/fulfillment"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateSaleLineRequest struct {
	ItemID    uint            `json:"item_id"`
	Kind      models.ItemKind `json:"kind"`
	RecipeID  *uint           `json:"recipe_id"` // batch_portion only
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateSaleRequest struct {
	Lines   []CreateSaleLineRequest `json:"lines"`
	Payment struct {
		Method     models.PaymentMethod `json:"method"`
		AmountCash decimal.Decimal      `json:"amount_cash"`
		AmountCard decimal.Decimal      `json:"amount_card"`
	} `json:"payment"`
	Notes string `json:"notes"`
}

type SaleItemResponse struct {
	ItemID    uint            `json:"item_id"`
	Kind      models.ItemKind `json:"kind"`
	RecipeID  *uint           `json:"recipe_id,omitempty"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleDecrementResponse struct {
	Line     int    `json:"line"`
	Type     string `json:"type"`
	ItemID   *uint  `json:"item_id,omitempty"`
	BatchID  *uint  `json:"batch_id,omitempty"`
	Quantity int64  `json:"quantity"`
}

type SaleResponse struct {
	Reference  uuid.UUID               `json:"reference"`
	UserID     uint                    `json:"user_id"`
	Method     models.PaymentMethod    `json:"method"`
	Total      decimal.Decimal         `json:"total"`
	AmountCash decimal.Decimal         `json:"amount_cash"`
	AmountCard decimal.Decimal         `json:"amount_card"`
	Notes      string                  `json:"notes"`
	CreatedAt  string                  `json:"created_at"`
	Items      []SaleItemResponse      `json:"items,omitempty"`
	Decrements []SaleDecrementResponse `json:"decrements,omitempty"`
}

// FulfillmentErrorResponse is returned when the sale cannot be served from
// stock. Quantities are always present; ids only when relevant to Code.
type FulfillmentErrorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	Line         *int   `json:"line,omitempty"`
	ItemID       uint   `json:"item_id,omitempty"`
	RecipeID     uint   `json:"recipe_id,omitempty"`
	IngredientID uint   `json:"ingredient_id,omitempty"`
	Requested    int64  `json:"requested"`
	Available    int64  `json:"available"`
	Deficit      int64  `json:"deficit"`
}

// POST /api/sales
func CreateSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		cart := Cart{
			Payment: Payment{
				Method:     body.Payment.Method,
				AmountCash: body.Payment.AmountCash,
				AmountCard: body.Payment.AmountCard,
			},
			Notes: body.Notes,
		}
		for _, l := range body.Lines {
			cart.Lines = append(cart.Lines, CartLine{
				ItemID:    l.ItemID,
				Kind:      l.Kind,
				RecipeID:  l.RecipeID,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
			})
		}

		sale, err := svc.Checkout(c.UserContext(), companyID, auth.UserID(c), cart)
		if err != nil {
			return checkoutError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(sale))
	}
}

// GET /api/sales/:reference
func GetSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		ref, err := uuid.Parse(c.Params("reference"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid sale reference")
		}

		sale, err := svc.Get(c.UserContext(), companyID, ref)
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "sale not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(toResponse(sale))
	}
}

// GET /api/sales?since=2026-01-31&limit=50
func ListSalesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		var since *time.Time
		if s := c.Query("since"); s != "" {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "since must be YYYY-MM-DD")
			}
			since = &d
		}

		sales, err := svc.List(c.UserContext(), companyID, since, c.QueryInt("limit", 100))
		if err != nil {
			return err
		}

		resp := make([]SaleResponse, 0, len(sales))
		for i := range sales {
			resp = append(resp, toResponse(&sales[i]))
		}
		return c.JSON(resp)
	}
}

func checkoutError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidCart), errors.Is(err, ErrPaymentMismatch):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	code := fulfillment.Code(err)
	if code == "internal" {
		return err
	}

	resp := FulfillmentErrorResponse{Error: err.Error(), Code: code}
	var lineErr *fulfillment.LineError
	if errors.As(err, &lineErr) {
		resp.Line = &lineErr.Index
		resp.ItemID = lineErr.ItemID
	}

	var (
		stockErr       *fulfillment.InsufficientStockError
		portionsErr    *fulfillment.InsufficientPortionsError
		ingredientsErr *fulfillment.InsufficientIngredientsError
	)
	status := fiber.StatusUnprocessableEntity
	switch {
	case errors.As(err, &stockErr):
		status = fiber.StatusConflict
		resp.ItemID, resp.Requested, resp.Available, resp.Deficit = stockErr.ItemID, stockErr.Requested, stockErr.Available, stockErr.Deficit()
	case errors.As(err, &portionsErr):
		status = fiber.StatusConflict
		resp.RecipeID, resp.Requested, resp.Available, resp.Deficit = portionsErr.RecipeID, portionsErr.Requested, portionsErr.Available, portionsErr.Deficit()
	case errors.As(err, &ingredientsErr):
		status = fiber.StatusConflict
		resp.RecipeID, resp.IngredientID = ingredientsErr.RecipeID, ingredientsErr.IngredientID
		resp.Requested, resp.Available, resp.Deficit = ingredientsErr.Needed, ingredientsErr.Available, ingredientsErr.Deficit()
	}
	return c.Status(status).JSON(resp)
}

func toResponse(s *models.Sale) SaleResponse {
	resp := SaleResponse{
		Reference:  s.Reference,
		UserID:     s.UserID,
		Method:     s.Method,
		Total:      s.Total,
		AmountCash: s.AmountCash,
		AmountCard: s.AmountCard,
		Notes:      s.Notes,
		CreatedAt:  s.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, SaleItemResponse{
			ItemID:    it.ItemID,
			Kind:      it.Kind,
			RecipeID:  it.RecipeID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	for _, d := range s.Decrements {
		resp.Decrements = append(resp.Decrements, SaleDecrementResponse{
			Line:     d.LineIndex,
			Type:     d.Type,
			ItemID:   d.ItemID,
			BatchID:  d.BatchID,
			Quantity: d.Quantity,
		})
	}
	return resp
}

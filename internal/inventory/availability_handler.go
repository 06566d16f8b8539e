package inventory

import (
	"pos-backend/internal/auth"
	"pos-backend/internal/batch"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"
	"pos-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LowStockThreshold flags sellable items at or below this many units.
const LowStockThreshold = 5

type AvailabilityResponse struct {
	ItemID    uint            `json:"item_id"`
	Name      string          `json:"name"`
	Kind      models.ItemKind `json:"kind"`
	Price     decimal.Decimal `json:"price"`
	RecipeID  *uint           `json:"recipe_id,omitempty"`
	Available int64           `json:"available"`
	LowStock  bool            `json:"low_stock"`
}

// GET /api/items/availability?kind=batch_portion
// What the register can sell right now: stock on hand for unit and
// ingredient items, portions left in active batches for batch_portion items.
// Ingredient fallback is not counted.
func AvailabilityHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		cat := catalog.New(db)
		items, err := cat.ListItems(ctx, companyID, models.ItemKind(c.Query("kind")), true)
		if err != nil {
			return err
		}

		balances, err := stock.NewLedger(db).Balances(ctx, companyID)
		if err != nil {
			return err
		}
		recipes, err := cat.RecipesByItem(ctx, companyID)
		if err != nil {
			return err
		}
		portions, err := batch.NewLedger(db).PortionsByRecipe(ctx, companyID)
		if err != nil {
			return err
		}

		resp := make([]AvailabilityResponse, 0, len(items))
		for _, it := range items {
			row := AvailabilityResponse{ItemID: it.ID, Name: it.Name, Kind: it.Kind, Price: it.Price}

			if it.Kind.StockTracked() {
				row.Available = balances[it.ID]
			} else if r, ok := recipes[it.ID]; ok {
				row.RecipeID = &r.ID
				row.Available = portions[r.ID]
			}

			row.LowStock = row.Available <= LowStockThreshold
			resp = append(resp, row)
		}

		return c.JSON(resp)
	}
}

package fulfillment

import (
	"fmt"
	"math"

	"pos-backend/internal/models"
)

type batchDraw struct {
	batchID uint
	before  int64
	after   int64
}

func (d batchDraw) quantity() int64 { return d.before - d.after }

type ingredientNeed struct {
	itemID   uint
	quantity int64
}

// plan is the full set of writes for one batch_portion line. Nothing in it has
// been applied.
type plan struct {
	draws       []batchDraw
	shortfall   int64
	ingredients []ingredientNeed
}

// planBatches draws qty from batches in the given order, taking as much as
// each batch holds until the demand is met.
func planBatches(batches []models.Batch, qty int64) plan {
	p := plan{shortfall: qty}
	for _, b := range batches {
		if p.shortfall == 0 {
			break
		}
		if b.PortionsLeft <= 0 {
			continue
		}
		take := min(b.PortionsLeft, p.shortfall)
		p.draws = append(p.draws, batchDraw{batchID: b.ID, before: b.PortionsLeft, after: b.PortionsLeft - take})
		p.shortfall -= take
	}
	return p
}

// ingredientNeeds scales per-portion requirements to the shortfall. Repeated
// rows for the same ingredient are summed; first-seen order is kept. A need
// that does not fit in an int64 is an invalid line item.
func ingredientNeeds(rows []models.RecipeIngredient, shortfall int64) ([]ingredientNeed, error) {
	needs := make([]ingredientNeed, 0, len(rows))
	pos := make(map[uint]int, len(rows))
	for _, r := range rows {
		if r.QuantityNeeded != 0 && shortfall > math.MaxInt64/r.QuantityNeeded {
			return nil, needOverflow(r.IngredientID, shortfall)
		}
		q := shortfall * r.QuantityNeeded
		if i, ok := pos[r.IngredientID]; ok {
			if needs[i].quantity > math.MaxInt64-q {
				return nil, needOverflow(r.IngredientID, shortfall)
			}
			needs[i].quantity += q
			continue
		}
		pos[r.IngredientID] = len(needs)
		needs = append(needs, ingredientNeed{itemID: r.IngredientID, quantity: q})
	}
	return needs, nil
}

func needOverflow(ingredientID uint, shortfall int64) error {
	return fmt.Errorf("%w: %d portions need more of ingredient %d than can be counted", ErrInvalidLineItem, shortfall, ingredientID)
}

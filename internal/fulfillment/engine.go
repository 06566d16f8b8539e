package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"pos-backend/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "pos-backend/internal/fulfillment"

type Options struct {
	// EmptyRecipeFallback lets a recipe without ingredients cover any batch
	// shortfall with zero ingredient deductions.
	EmptyRecipeFallback bool
}

// Engine turns sale line items into stock, batch and ingredient deductions.
type Engine struct {
	store  Store
	log    *zap.Logger
	tracer trace.Tracer
	opts   Options
}

func NewEngine(store Store, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:  store,
		log:    log,
		tracer: otel.Tracer(tracerName),
		opts:   opts,
	}
}

// WithStore returns a copy of the engine running on another store.
func (e *Engine) WithStore(s Store) *Engine {
	cp := *e
	cp.store = s
	return &cp
}

// Fulfill applies the deductions for lines, in order. Each line item is
// all-or-nothing. On failure it returns the records of the lines already
// committed together with a *LineError; those lines are not rolled back.
func (e *Engine) Fulfill(ctx context.Context, companyID uint, lines []LineItem) ([]DecrementRecord, error) {
	ctx, span := e.tracer.Start(ctx, "fulfillment.Fulfill", trace.WithAttributes(
		attribute.Int64("company.id", int64(companyID)),
		attribute.Int("fulfillment.lines", len(lines)),
	))
	defer span.End()

	if err := validate(lines); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid line items")
		return nil, err
	}

	applied := make([]DecrementRecord, 0, len(lines))
	for i, line := range lines {
		records, err := e.fulfillLine(ctx, companyID, i, line)
		if err != nil {
			lineErr := &LineError{Index: i, ItemID: line.ItemID, Err: err}
			e.log.Warn("line item rejected",
				zap.Uint("company_id", companyID),
				zap.Int("line", i),
				zap.Uint("item_id", line.ItemID),
				zap.String("code", Code(err)),
				zap.Error(err),
			)
			span.RecordError(lineErr)
			span.SetStatus(codes.Error, Code(err))
			return applied, lineErr
		}
		applied = append(applied, records...)
	}

	span.SetAttributes(attribute.Int("fulfillment.decrements", len(applied)))
	span.SetStatus(codes.Ok, "")
	e.log.Debug("sale fulfilled",
		zap.Uint("company_id", companyID),
		zap.Int("lines", len(lines)),
		zap.Int("decrements", len(applied)),
	)
	return applied, nil
}

func validate(lines []LineItem) error {
	for i, line := range lines {
		var reason string
		switch {
		case line.Quantity <= 0:
			reason = fmt.Sprintf("quantity must be positive, got %d", line.Quantity)
		case !line.Kind.Valid():
			reason = fmt.Sprintf("unknown kind %q", line.Kind)
		case line.ItemID == 0:
			reason = "item id is required"
		case line.RecipeID != nil && line.Kind != models.ItemKindBatchPortion:
			reason = "only batch_portion lines carry a recipe"
		default:
			continue
		}
		return &LineError{Index: i, ItemID: line.ItemID, Err: fmt.Errorf("%w: %s", ErrInvalidLineItem, reason)}
	}
	return nil
}

func (e *Engine) fulfillLine(ctx context.Context, companyID uint, index int, line LineItem) ([]DecrementRecord, error) {
	ctx, span := e.tracer.Start(ctx, "fulfillment.line_item", trace.WithAttributes(
		attribute.Int("line.index", index),
		attribute.Int64("item.id", int64(line.ItemID)),
		attribute.String("item.kind", string(line.Kind)),
		attribute.Int64("line.quantity", line.Quantity),
	))
	defer span.End()

	var records []DecrementRecord
	err := e.store.InTx(ctx, func(l Ledgers) error {
		var err error
		if line.Kind == models.ItemKindBatchPortion {
			records, err = e.fulfillPortions(ctx, l, companyID, index, line)
		} else {
			records, err = e.fulfillStock(ctx, l, companyID, index, line)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Code(err))
		return nil, err
	}
	return records, nil
}

func (e *Engine) fulfillStock(ctx context.Context, l Ledgers, companyID uint, index int, line LineItem) ([]DecrementRecord, error) {
	it, err := l.Recipes.Item(ctx, companyID, line.ItemID)
	if err != nil {
		return nil, err
	}
	if !it.Kind.StockTracked() {
		return nil, fmt.Errorf("%w: item %d is %s, not stock tracked", ErrInvalidLineItem, it.ID, it.Kind)
	}

	if _, err := l.Stock.Decrease(ctx, companyID, line.ItemID, line.Quantity, saleNote(index)); err != nil {
		return nil, err
	}
	return []DecrementRecord{{Line: index, Type: DecrementStock, ItemID: line.ItemID, Quantity: line.Quantity}}, nil
}

// fulfillPortions plans the whole line first (batches, then ingredients for
// any shortfall) and only writes once the plan is known to be satisfiable.
func (e *Engine) fulfillPortions(ctx context.Context, l Ledgers, companyID uint, index int, line LineItem) ([]DecrementRecord, error) {
	it, err := l.Recipes.Item(ctx, companyID, line.ItemID)
	if err != nil {
		return nil, err
	}
	if it.Kind != models.ItemKindBatchPortion {
		return nil, fmt.Errorf("%w: item %d is %s, not batch_portion", ErrInvalidLineItem, it.ID, it.Kind)
	}

	recipe, canFallBack, err := e.resolveRecipe(ctx, l, companyID, line)
	if err != nil {
		return nil, err
	}

	var batches []models.Batch
	if recipe.ID != 0 {
		if batches, err = l.Batches.ListActiveBatches(ctx, companyID, recipe.ID); err != nil {
			return nil, err
		}
	}
	p := planBatches(batches, line.Quantity)

	if p.shortfall > 0 {
		noFallback := &InsufficientPortionsError{
			RecipeID:  recipe.ID,
			ItemID:    line.ItemID,
			Requested: line.Quantity,
			Available: line.Quantity - p.shortfall,
		}
		if !canFallBack {
			return nil, noFallback
		}

		ingredients, err := l.Recipes.IngredientsOf(ctx, companyID, recipe.ID)
		if err != nil {
			return nil, err
		}
		if len(ingredients) == 0 && !e.opts.EmptyRecipeFallback {
			return nil, noFallback
		}

		if p.ingredients, err = ingredientNeeds(ingredients, p.shortfall); err != nil {
			return nil, err
		}
		for _, need := range p.ingredients {
			available, err := l.Stock.CurrentQuantity(ctx, companyID, need.itemID)
			if err != nil {
				return nil, err
			}
			if available < need.quantity {
				return nil, &InsufficientIngredientsError{
					RecipeID:     recipe.ID,
					IngredientID: need.itemID,
					Needed:       need.quantity,
					Available:    available,
				}
			}
		}
	}

	return e.commit(ctx, l, companyID, index, p)
}

// resolveRecipe finds the recipe whose batches serve the line. Only an
// explicit recipe id on the line enables the ingredient fallback; without one
// the recipe producing the item, if any, is used for batches alone.
func (e *Engine) resolveRecipe(ctx context.Context, l Ledgers, companyID uint, line LineItem) (models.Recipe, bool, error) {
	if line.RecipeID != nil {
		r, err := l.Recipes.Recipe(ctx, companyID, *line.RecipeID)
		if err != nil {
			return models.Recipe{}, false, err
		}
		if r.ItemID != nil && *r.ItemID != line.ItemID {
			return models.Recipe{}, false, fmt.Errorf("%w: recipe %d does not produce item %d", ErrInvalidLineItem, r.ID, line.ItemID)
		}
		return r, true, nil
	}

	r, err := l.Recipes.RecipeForItem(ctx, companyID, line.ItemID)
	if errors.Is(err, ErrUnknownRecipe) {
		return models.Recipe{}, false, nil
	}
	if err != nil {
		return models.Recipe{}, false, err
	}
	return r, false, nil
}

func (e *Engine) commit(ctx context.Context, l Ledgers, companyID uint, index int, p plan) ([]DecrementRecord, error) {
	records := make([]DecrementRecord, 0, len(p.draws)+len(p.ingredients))

	for _, d := range p.draws {
		if err := l.Batches.SetPortionsLeft(ctx, companyID, d.batchID, d.after); err != nil {
			return nil, err
		}
		records = append(records, DecrementRecord{Line: index, Type: DecrementBatch, BatchID: d.batchID, Quantity: d.quantity()})
	}

	for _, need := range p.ingredients {
		if need.quantity == 0 {
			continue
		}
		if _, err := l.Stock.Decrease(ctx, companyID, need.itemID, need.quantity, saleNote(index)); err != nil {
			return nil, err
		}
		records = append(records, DecrementRecord{Line: index, Type: DecrementIngredient, ItemID: need.itemID, Quantity: need.quantity})
	}

	return records, nil
}

func saleNote(index int) string {
	return fmt.Sprintf("sale line %d", index)
}

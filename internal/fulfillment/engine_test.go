package fulfillment

import (
	"context"
	"errors"
	"testing"

	"pos-backend/internal/batch"
	"pos-backend/internal/database/databasetest"
	"pos-backend/internal/models"
	"pos-backend/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type kitchen struct {
	db      *gorm.DB
	engine  *Engine
	store   *GormStore
	company models.Company
	portion models.Item // batch_portion produced by recipe
	flour   models.Item // ingredient, 1 per portion
	soda    models.Item // unit
	recipe  models.Recipe
}

func newKitchen(t *testing.T) *kitchen {
	db := databasetest.Open(t)
	k := &kitchen{db: db, store: NewGormStore(db, 0)}
	k.engine = NewEngine(k.store, nil, Options{EmptyRecipeFallback: true})
	k.company = databasetest.Company(t, db, "Cafe Norte")
	k.portion = databasetest.Item(t, db, k.company.ID, "Lasagna", models.ItemKindBatchPortion)
	k.flour = databasetest.Item(t, db, k.company.ID, "Flour", models.ItemKindIngredient)
	k.soda = databasetest.Item(t, db, k.company.ID, "Soda", models.ItemKindUnit)
	k.recipe = databasetest.Recipe(t, db, k.company.ID, k.portion.ID, "Lasagna tray",
		models.RecipeIngredient{IngredientID: k.flour.ID, QuantityNeeded: 1})
	return k
}

func (k *kitchen) restock(t *testing.T, itemID uint, qty int64) {
	t.Helper()
	_, err := stock.NewLedger(k.db).Increase(context.Background(), k.company.ID, itemID, qty, "delivery")
	require.NoError(t, err)
}

func (k *kitchen) onHand(t *testing.T, itemID uint) int64 {
	t.Helper()
	qty, err := stock.NewLedger(k.db).CurrentQuantity(context.Background(), k.company.ID, itemID)
	require.NoError(t, err)
	return qty
}

func (k *kitchen) portionsLeft(t *testing.T, batchID uint) int64 {
	t.Helper()
	b, err := batch.NewLedger(k.db).Get(context.Background(), k.company.ID, batchID)
	require.NoError(t, err)
	return b.PortionsLeft
}

func (k *kitchen) portions(qty int64) LineItem {
	return LineItem{ItemID: k.portion.ID, Kind: models.ItemKindBatchPortion, RecipeID: &k.recipe.ID, Quantity: qty}
}

func TestFulfillUnitLine(t *testing.T) {
	k := newKitchen(t)
	k.restock(t, k.soda.ID, 5)

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.soda.ID, Kind: models.ItemKindUnit, Quantity: 2},
	})

	require.NoError(t, err)
	assert.Equal(t, []DecrementRecord{{Line: 0, Type: DecrementStock, ItemID: k.soda.ID, Quantity: 2}}, records)
	assert.Equal(t, int64(3), k.onHand(t, k.soda.ID))
}

func TestFulfillUnitLineInsufficientStock(t *testing.T) {
	k := newKitchen(t)
	k.restock(t, k.soda.ID, 1)

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.soda.ID, Kind: models.ItemKindUnit, Quantity: 2},
	})

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(1), insufficient.Deficit())
	assert.Equal(t, "insufficient_stock", Code(err))
	assert.Empty(t, records)
	assert.Equal(t, int64(1), k.onHand(t, k.soda.ID))
}

func TestBatchesAreDrawnSoonestExpiryFirst(t *testing.T) {
	k := newKitchen(t)
	a := databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 5, databasetest.Day(3))
	b := databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 5, databasetest.Day(1))
	c := databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 5, nil)

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{k.portions(12)})

	require.NoError(t, err)
	assert.Equal(t, []DecrementRecord{
		{Line: 0, Type: DecrementBatch, BatchID: b.ID, Quantity: 5},
		{Line: 0, Type: DecrementBatch, BatchID: a.ID, Quantity: 5},
		{Line: 0, Type: DecrementBatch, BatchID: c.ID, Quantity: 2},
	}, records)
	assert.Equal(t, int64(0), k.portionsLeft(t, a.ID))
	assert.Equal(t, int64(0), k.portionsLeft(t, b.ID))
	assert.Equal(t, int64(3), k.portionsLeft(t, c.ID))
}

func TestIngredientShortfallLeavesLineUntouched(t *testing.T) {
	k := newKitchen(t)
	b := databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 2, databasetest.Day(1))
	k.restock(t, k.flour.ID, 5)

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{k.portions(10)})

	var short *InsufficientIngredientsError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, k.recipe.ID, short.RecipeID)
	assert.Equal(t, k.flour.ID, short.IngredientID)
	assert.Equal(t, int64(8), short.Needed)
	assert.Equal(t, int64(3), short.Deficit())

	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 0, lineErr.Index)

	assert.Empty(t, records)
	assert.Equal(t, int64(2), k.portionsLeft(t, b.ID))
	assert.Equal(t, int64(5), k.onHand(t, k.flour.ID))
}

func TestIngredientFallbackCoversShortfall(t *testing.T) {
	k := newKitchen(t)
	b := databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 2, databasetest.Day(1))
	k.restock(t, k.flour.ID, 10)

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{k.portions(10)})

	require.NoError(t, err)
	assert.Equal(t, []DecrementRecord{
		{Line: 0, Type: DecrementBatch, BatchID: b.ID, Quantity: 2},
		{Line: 0, Type: DecrementIngredient, ItemID: k.flour.ID, Quantity: 8},
	}, records)
	assert.Equal(t, int64(0), k.portionsLeft(t, b.ID))
	assert.Equal(t, int64(2), k.onHand(t, k.flour.ID))
}

func TestFallbackNeedTooLargeToCountIsRejected(t *testing.T) {
	k := newKitchen(t)
	recipe := databasetest.Recipe(t, k.db, k.company.ID, k.portion.ID, "Lasagna family",
		models.RecipeIngredient{IngredientID: k.flour.ID, QuantityNeeded: 4})
	b := databasetest.Batch(t, k.db, k.company.ID, recipe.ID, 1, databasetest.Day(1))

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.portion.ID, Kind: models.ItemKindBatchPortion, RecipeID: &recipe.ID, Quantity: 1<<62 + 1},
	})

	require.ErrorIs(t, err, ErrInvalidLineItem)
	assert.Equal(t, "invalid_line_item", Code(err))
	assert.Empty(t, records)
	assert.Equal(t, int64(1), k.portionsLeft(t, b.ID))
	assert.Equal(t, int64(0), k.onHand(t, k.flour.ID))
}

func TestFallbackReportsFirstShortIngredient(t *testing.T) {
	k := newKitchen(t)
	cheese := databasetest.Item(t, k.db, k.company.ID, "Cheese", models.ItemKindIngredient)
	sauce := databasetest.Item(t, k.db, k.company.ID, "Sauce", models.ItemKindIngredient)
	recipe := databasetest.Recipe(t, k.db, k.company.ID, k.portion.ID, "Lasagna deluxe",
		models.RecipeIngredient{IngredientID: k.flour.ID, QuantityNeeded: 1},
		models.RecipeIngredient{IngredientID: cheese.ID, QuantityNeeded: 2},
		models.RecipeIngredient{IngredientID: sauce.ID, QuantityNeeded: 3},
	)
	k.restock(t, k.flour.ID, 100)
	k.restock(t, cheese.ID, 1)

	_, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.portion.ID, Kind: models.ItemKindBatchPortion, RecipeID: &recipe.ID, Quantity: 2},
	})

	var short *InsufficientIngredientsError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, cheese.ID, short.IngredientID)
	assert.Equal(t, int64(3), short.Deficit())
	assert.Equal(t, int64(100), k.onHand(t, k.flour.ID))
}

func TestFailingLineDoesNotUndoEarlierLines(t *testing.T) {
	k := newKitchen(t)
	databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 2, nil)
	k.restock(t, k.soda.ID, 5)

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.soda.ID, Kind: models.ItemKindUnit, Quantity: 2},
		k.portions(10),
	})

	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Index)
	assert.Equal(t, []DecrementRecord{{Line: 0, Type: DecrementStock, ItemID: k.soda.ID, Quantity: 2}}, records)
	assert.Equal(t, int64(3), k.onHand(t, k.soda.ID))
}

func TestInvalidQuantitiesAreRejectedBeforeAnyLedgerAccess(t *testing.T) {
	k := newKitchen(t)
	k.restock(t, k.soda.ID, 5)

	for _, qty := range []int64{0, -3} {
		records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
			{ItemID: k.soda.ID, Kind: models.ItemKindUnit, Quantity: 1},
			{ItemID: k.soda.ID, Kind: models.ItemKindUnit, Quantity: qty},
		})

		require.ErrorIs(t, err, ErrInvalidLineItem)
		var lineErr *LineError
		require.ErrorAs(t, err, &lineErr)
		assert.Equal(t, 1, lineErr.Index)
		assert.Nil(t, records)
	}
	assert.Equal(t, int64(5), k.onHand(t, k.soda.ID))
}

func TestLineWithoutRecipeCannotFallBack(t *testing.T) {
	k := newKitchen(t)
	b := databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 2, nil)
	k.restock(t, k.flour.ID, 50)
	line := LineItem{ItemID: k.portion.ID, Kind: models.ItemKindBatchPortion, Quantity: 3}

	_, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{line})

	var portions *InsufficientPortionsError
	require.ErrorAs(t, err, &portions)
	assert.Equal(t, int64(3), portions.Requested)
	assert.Equal(t, int64(2), portions.Available)
	assert.Equal(t, int64(1), portions.Deficit())
	assert.Equal(t, int64(2), k.portionsLeft(t, b.ID))
	assert.Equal(t, int64(50), k.onHand(t, k.flour.ID))

	// batches of the item's recipe still serve the line
	line.Quantity = 2
	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{line})
	require.NoError(t, err)
	assert.Equal(t, []DecrementRecord{{Line: 0, Type: DecrementBatch, BatchID: b.ID, Quantity: 2}}, records)
}

func TestEmptyRecipeFallback(t *testing.T) {
	k := newKitchen(t)
	bread := databasetest.Item(t, k.db, k.company.ID, "Bread", models.ItemKindBatchPortion)
	recipe := databasetest.Recipe(t, k.db, k.company.ID, bread.ID, "Bread loaf")
	b := databasetest.Batch(t, k.db, k.company.ID, recipe.ID, 1, nil)
	line := LineItem{ItemID: bread.ID, Kind: models.ItemKindBatchPortion, RecipeID: &recipe.ID, Quantity: 4}

	strict := NewEngine(k.store, nil, Options{EmptyRecipeFallback: false})
	_, err := strict.Fulfill(context.Background(), k.company.ID, []LineItem{line})
	var portions *InsufficientPortionsError
	require.ErrorAs(t, err, &portions)
	assert.Equal(t, int64(1), k.portionsLeft(t, b.ID))

	records, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{line})
	require.NoError(t, err)
	assert.Equal(t, []DecrementRecord{{Line: 0, Type: DecrementBatch, BatchID: b.ID, Quantity: 1}}, records)
}

func TestUnknownReferences(t *testing.T) {
	k := newKitchen(t)
	missing := uint(4040)

	_, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: missing, Kind: models.ItemKindUnit, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.Equal(t, "unknown_item", Code(err))

	_, err = k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.portion.ID, Kind: models.ItemKindBatchPortion, RecipeID: &missing, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrUnknownRecipe)
	assert.Equal(t, "unknown_recipe", Code(err))
}

func TestKindMismatchIsInvalid(t *testing.T) {
	k := newKitchen(t)
	databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 5, nil)
	k.restock(t, k.soda.ID, 5)

	_, err := k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.portion.ID, Kind: models.ItemKindUnit, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidLineItem)

	_, err = k.engine.Fulfill(context.Background(), k.company.ID, []LineItem{
		{ItemID: k.soda.ID, Kind: models.ItemKindBatchPortion, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidLineItem)
	assert.Equal(t, int64(5), k.onHand(t, k.soda.ID))
}

// staleStock reports more stock than exists, as a concurrent sale would make
// a snapshot look after the check but before the write.
type staleStock struct {
	StockLedger
}

func (s staleStock) CurrentQuantity(ctx context.Context, companyID, itemID uint) (int64, error) {
	qty, err := s.StockLedger.CurrentQuantity(ctx, companyID, itemID)
	return qty + 100, err
}

type staleStore struct {
	inner Store
}

func (s staleStore) InTx(ctx context.Context, fn func(Ledgers) error) error {
	return s.inner.InTx(ctx, func(l Ledgers) error {
		l.Stock = staleStock{l.Stock}
		return fn(l)
	})
}

func TestWriteFailureDuringCommitRollsBackTheLine(t *testing.T) {
	k := newKitchen(t)
	b := databasetest.Batch(t, k.db, k.company.ID, k.recipe.ID, 2, nil)
	k.restock(t, k.flour.ID, 3)

	engine := k.engine.WithStore(staleStore{inner: k.store})
	records, err := engine.Fulfill(context.Background(), k.company.ID, []LineItem{k.portions(10)})

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Empty(t, records)
	assert.Equal(t, int64(2), k.portionsLeft(t, b.ID))
	assert.Equal(t, int64(3), k.onHand(t, k.flour.ID))
}

func TestStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	engine := NewEngine(failingStore{err: boom}, nil, Options{})

	_, err := engine.Fulfill(context.Background(), 1, []LineItem{{ItemID: 1, Kind: models.ItemKindUnit, Quantity: 1}})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "internal", Code(err))
}

type failingStore struct{ err error }

func (s failingStore) InTx(context.Context, func(Ledgers) error) error { return s.err }

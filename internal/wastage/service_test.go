package wastage

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"pos-backend/internal/auth"
	"pos-backend/internal/batch"
	"pos-backend/internal/catalog"
	"pos-backend/internal/database/databasetest"
	"pos-backend/internal/models"
	"pos-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterBatchWastageClamps(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	portion := databasetest.Item(t, db, company.ID, "Lasagna", models.ItemKindBatchPortion)
	recipe := databasetest.Recipe(t, db, company.ID, portion.ID, "Lasagna tray")
	b := databasetest.Batch(t, db, company.ID, recipe.ID, 3, nil)
	svc := NewService(db, zap.NewNop())

	w, err := svc.Register(ctx, company.ID, 5, Input{SourceType: models.WastageSourceBatch, SourceID: b.ID, Quantity: 2, Reason: models.WastageCourtesy})
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Removed)

	w, err = svc.Register(ctx, company.ID, 5, Input{SourceType: models.WastageSourceBatch, SourceID: b.ID, Quantity: 4, Reason: models.WastageLeftover, Note: " end of day "})
	require.NoError(t, err)
	assert.Equal(t, int64(4), w.Requested)
	assert.Equal(t, int64(1), w.Removed)
	assert.Equal(t, "end of day", w.Note)

	got, err := batch.NewLedger(db).Get(ctx, company.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.PortionsLeft)

	w, err = svc.Register(ctx, company.ID, 5, Input{SourceType: models.WastageSourceBatch, SourceID: b.ID, Quantity: 1, Reason: models.WastageDiscard})
	require.NoError(t, err)
	assert.Zero(t, w.Removed)

	var logs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_type = ?", "wastage").Count(&logs).Error)
	assert.Equal(t, int64(3), logs)
}

func TestRegisterItemWastageUsesStockLedger(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	milk := databasetest.Item(t, db, company.ID, "Milk", models.ItemKindIngredient)
	ledger := stock.NewLedger(db)
	_, err := ledger.Increase(ctx, company.ID, milk.ID, 3, "delivery")
	require.NoError(t, err)
	svc := NewService(db, zap.NewNop())

	w, err := svc.Register(ctx, company.ID, 1, Input{SourceType: models.WastageSourceItem, SourceID: milk.ID, Quantity: 5, Reason: models.WastageDiscard})
	require.NoError(t, err)
	assert.Equal(t, int64(3), w.Removed)

	current, err := ledger.CurrentQuantity(ctx, company.ID, milk.ID)
	require.NoError(t, err)
	assert.Zero(t, current)
	replayed, err := ledger.ReplayQuantity(ctx, company.ID, milk.ID)
	require.NoError(t, err)
	assert.Zero(t, replayed)

	// nothing left: recorded, nothing removed, no movement
	w, err = svc.Register(ctx, company.ID, 1, Input{SourceType: models.WastageSourceItem, SourceID: milk.ID, Quantity: 1, Reason: models.WastageAdjustment})
	require.NoError(t, err)
	assert.Zero(t, w.Removed)
	movements, err := ledger.Movements(ctx, company.ID, milk.ID, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 2)
}

func TestRegisterRejects(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	portion := databasetest.Item(t, db, company.ID, "Lasagna", models.ItemKindBatchPortion)
	svc := NewService(db, zap.NewNop())

	_, err := svc.Register(ctx, company.ID, 1, Input{SourceType: models.WastageSourceItem, SourceID: portion.ID, Quantity: 0, Reason: models.WastageDiscard})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Register(ctx, company.ID, 1, Input{SourceType: models.WastageSourceItem, SourceID: portion.ID, Quantity: 1, Reason: "stolen"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Register(ctx, company.ID, 1, Input{SourceType: "shelf", SourceID: portion.ID, Quantity: 1, Reason: models.WastageDiscard})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Register(ctx, company.ID, 1, Input{SourceType: models.WastageSourceItem, SourceID: portion.ID, Quantity: 1, Reason: models.WastageDiscard})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Register(ctx, company.ID, 1, Input{SourceType: models.WastageSourceItem, SourceID: 999, Quantity: 1, Reason: models.WastageDiscard})
	assert.ErrorIs(t, err, catalog.ErrUnknownItem)
	_, err = svc.Register(ctx, company.ID, 1, Input{SourceType: models.WastageSourceBatch, SourceID: 999, Quantity: 1, Reason: models.WastageDiscard})
	assert.ErrorIs(t, err, batch.ErrNotFound)

	list, err := svc.List(ctx, company.ID, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWastageHandlers(t *testing.T) {
	db := databasetest.Open(t)
	company := databasetest.Company(t, db, "Cafe Norte")
	milk := databasetest.Item(t, db, company.ID, "Milk", models.ItemKindIngredient)
	_, err := stock.NewLedger(db).Increase(context.Background(), company.ID, milk.ID, 3, "delivery")
	require.NoError(t, err)
	svc := NewService(db, zap.NewNop())

	app := fiber.New()
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Locals(auth.CtxCompanyIDKey, company.ID)
		return c.Next()
	})
	api.Post("/wastages", CreateWastageHandler(svc))
	api.Get("/wastages", ListWastagesHandler(svc))

	post := func(body string) int {
		req := httptest.NewRequest("POST", "/api/wastages", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusCreated, post(fmt.Sprintf(`{"source_type":"item","source_id":%d,"quantity":1,"reason":"discard"}`, milk.ID)))
	assert.Equal(t, fiber.StatusBadRequest, post(fmt.Sprintf(`{"source_type":"item","source_id":%d,"quantity":1,"reason":"lost"}`, milk.ID)))
	assert.Equal(t, fiber.StatusNotFound, post(`{"source_type":"batch","source_id":42,"quantity":1,"reason":"discard"}`))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/wastages?reason=discard", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

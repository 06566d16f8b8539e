package audit

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"pos-backend/internal/auth"
	"pos-backend/internal/database/databasetest"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWriteLogCommitsWithTransaction(t *testing.T) {
	db := databasetest.Open(t)
	company := databasetest.Company(t, db, "Cafe Norte")

	rollback := errors.New("rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, WriteLog(tx, LogOptions{CompanyID: company.ID, EntityType: "sale", EntityID: 1, Action: models.AuditActionSale}))
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, WriteLog(db, LogOptions{
		CompanyID:  company.ID,
		UserID:     4,
		EntityType: "batch",
		EntityID:   2,
		Action:     models.AuditActionUpdate,
		Before:     map[string]int64{"portions_left": 8},
		After:      map[string]int64{"portions_left": 6},
	}))

	var log models.AuditLog
	require.NoError(t, db.First(&log).Error)
	assert.JSONEq(t, `{"portions_left":8}`, log.BeforeData)
	assert.JSONEq(t, `{"portions_left":6}`, log.AfterData)
}

func TestListAuditLogsIsScopedToCompany(t *testing.T) {
	db := databasetest.Open(t)
	mine := databasetest.Company(t, db, "Cafe Norte")
	other := databasetest.Company(t, db, "Cafe Sur")

	require.NoError(t, WriteLog(db, LogOptions{CompanyID: mine.ID, UserID: 1, EntityType: "sale", EntityID: 10, Action: models.AuditActionSale}))
	require.NoError(t, WriteLog(db, LogOptions{CompanyID: mine.ID, UserID: 2, EntityType: "wastage", EntityID: 11, Action: models.AuditActionWaste}))
	require.NoError(t, WriteLog(db, LogOptions{CompanyID: other.ID, UserID: 3, EntityType: "sale", EntityID: 12, Action: models.AuditActionSale}))

	app := fiber.New()
	app.Get("/api/audit-logs", func(c *fiber.Ctx) error {
		c.Locals(auth.CtxCompanyIDKey, mine.ID)
		return c.Next()
	}, ListAuditLogsHandler(db))

	list := func(query string) []AuditLogResponse {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/audit-logs"+query, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var out []AuditLogResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	all := list("")
	require.Len(t, all, 2)
	assert.Equal(t, uint(11), all[0].EntityID)

	sales := list("?entity_type=sale")
	require.Len(t, sales, 1)
	assert.Equal(t, uint(10), sales[0].EntityID)

	assert.Len(t, list("?user_id=2"), 1)
}

// Package databasetest opens throwaway SQLite databases with the production
// schema for package tests.
package databasetest

import (
	"path/filepath"
	"testing"
	"time"

	"pos-backend/internal/database"
	"pos-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "pos.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func Company(t *testing.T, db *gorm.DB, name string) models.Company {
	t.Helper()
	c := models.Company{Name: name}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func Item(t *testing.T, db *gorm.DB, companyID uint, name string, kind models.ItemKind) models.Item {
	t.Helper()
	it := models.Item{CompanyID: companyID, Name: name, Kind: kind, Price: decimal.NewFromInt(5), Active: true}
	require.NoError(t, db.Create(&it).Error)
	return it
}

// Recipe creates a recipe producing itemID with the given per-portion needs,
// keyed by ingredient item id and applied in slice order.
func Recipe(t *testing.T, db *gorm.DB, companyID, itemID uint, name string, needs ...models.RecipeIngredient) models.Recipe {
	t.Helper()
	r := models.Recipe{CompanyID: companyID, Name: name, ItemID: &itemID, PortionsPerBatch: 10}
	require.NoError(t, db.Create(&r).Error)
	for i := range needs {
		needs[i].RecipeID = r.ID
		require.NoError(t, db.Create(&needs[i]).Error)
	}
	r.Ingredients = needs
	return r
}

func Batch(t *testing.T, db *gorm.DB, companyID, recipeID uint, portions int64, expiry *time.Time) models.Batch {
	t.Helper()
	b := models.Batch{CompanyID: companyID, RecipeID: recipeID, PortionsLeft: portions, ExpiryDate: expiry}
	require.NoError(t, db.Create(&b).Error)
	return b
}

// Day returns midnight UTC of the given day offset from a fixed base date.
func Day(n int) *time.Time {
	d := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &d
}

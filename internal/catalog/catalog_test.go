package catalog

import (
	"context"
	"testing"

	"pos-backend/internal/database/databasetest"
	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRecipeAndIngredientsOf(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	c := New(db)

	portion, err := c.CreateItem(ctx, company.ID, ItemInput{Name: "Empanada", Kind: models.ItemKindBatchPortion, Price: decimal.RequireFromString("3.50")})
	require.NoError(t, err)
	flour, err := c.CreateItem(ctx, company.ID, ItemInput{Name: "Flour (g)", Kind: models.ItemKindIngredient})
	require.NoError(t, err)
	beef, err := c.CreateItem(ctx, company.ID, ItemInput{Name: "Beef (g)", Kind: models.ItemKindIngredient})
	require.NoError(t, err)

	recipe, err := c.CreateRecipe(ctx, company.ID, RecipeInput{
		Name:   "Empanadas",
		ItemID: &portion.ID,
		Ingredients: []IngredientInput{
			{IngredientID: beef.ID, QuantityNeeded: 80},
			{IngredientID: flour.ID, QuantityNeeded: 50},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), recipe.PortionsPerBatch)

	ings, err := c.IngredientsOf(ctx, company.ID, recipe.ID)
	require.NoError(t, err)
	require.Len(t, ings, 2)
	assert.Equal(t, beef.ID, ings[0].IngredientID)
	assert.Equal(t, int64(80), ings[0].QuantityNeeded)
	assert.Equal(t, flour.ID, ings[1].IngredientID)

	byItem, err := c.RecipeForItem(ctx, company.ID, portion.ID)
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, byItem.ID)

	recipes, err := c.ListRecipes(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Len(t, recipes[0].Ingredients, 2)
}

func TestUnknownReferences(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	other := databasetest.Company(t, db, "Cafe Sur")
	c := New(db)

	_, err := c.IngredientsOf(ctx, company.ID, 77)
	assert.ErrorIs(t, err, ErrUnknownRecipe)

	_, err = c.Item(ctx, company.ID, 77)
	assert.ErrorIs(t, err, ErrUnknownItem)

	foreign := databasetest.Item(t, db, other.ID, "Tea", models.ItemKindUnit)
	_, err = c.Item(ctx, company.ID, foreign.ID)
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = c.RecipeForItem(ctx, company.ID, foreign.ID)
	assert.ErrorIs(t, err, ErrUnknownRecipe)
}

func TestCreateRecipeValidation(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	c := New(db)

	soda := databasetest.Item(t, db, company.ID, "Soda", models.ItemKindUnit)

	_, err := c.CreateRecipe(ctx, company.ID, RecipeInput{Name: "Soda batch", ItemID: &soda.ID})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = c.CreateRecipe(ctx, company.ID, RecipeInput{Name: "Mystery", Ingredients: []IngredientInput{{IngredientID: 999, QuantityNeeded: 1}}})
	assert.ErrorIs(t, err, ErrUnknownItem)

	// failed creations leave nothing behind
	recipes, err := c.ListRecipes(ctx, company.ID)
	require.NoError(t, err)
	assert.Empty(t, recipes)
}

func TestCreateItemValidationAndListing(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	c := New(db)

	_, err := c.CreateItem(ctx, company.ID, ItemInput{Name: "  ", Kind: models.ItemKindUnit})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = c.CreateItem(ctx, company.ID, ItemInput{Name: "Gadget", Kind: "gizmo"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = c.CreateItem(ctx, company.ID, ItemInput{Name: "Refund", Kind: models.ItemKindUnit, Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = c.CreateItem(ctx, company.ID, ItemInput{Name: "Water", Kind: models.ItemKindUnit})
	require.NoError(t, err)
	_, err = c.CreateItem(ctx, company.ID, ItemInput{Name: "Butter", Kind: models.ItemKindIngredient})
	require.NoError(t, err)

	units, err := c.ListItems(ctx, company.ID, models.ItemKindUnit, true)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "Water", units[0].Name)

	all, err := c.ListItems(ctx, company.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, "Butter", all[0].Name)
	assert.Len(t, all, 2)
}

func TestRecipesByItemKeepsTheFirstRecipe(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()
	company := databasetest.Company(t, db, "Cafe Norte")
	lasagna := databasetest.Item(t, db, company.ID, "Lasagna", models.ItemKindBatchPortion)
	soup := databasetest.Item(t, db, company.ID, "Soup", models.ItemKindBatchPortion)

	first := databasetest.Recipe(t, db, company.ID, lasagna.ID, "Lasagna tray")
	databasetest.Recipe(t, db, company.ID, lasagna.ID, "Lasagna tray, large")
	soupRecipe := databasetest.Recipe(t, db, company.ID, soup.ID, "Soup pot")

	c := New(db)
	byItem, err := c.RecipesByItem(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, byItem, 2)
	assert.Equal(t, first.ID, byItem[lasagna.ID].ID)
	assert.Equal(t, soupRecipe.ID, byItem[soup.ID].ID)

	single, err := c.RecipeForItem(ctx, company.ID, lasagna.ID)
	require.NoError(t, err)
	assert.Equal(t, single.ID, byItem[lasagna.ID].ID)
}

package inventory

import (
	"fmt"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/catalog"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RecipeIngredientRequest struct {
	IngredientID   uint  `json:"ingredient_id"`
	QuantityNeeded int64 `json:"quantity_needed"` // per portion
}

type CreateRecipeRequest struct {
	Name             string                    `json:"name"`
	ItemID           *uint                     `json:"item_id"`
	PortionsPerBatch int64                     `json:"portions_per_batch"`
	Ingredients      []RecipeIngredientRequest `json:"ingredients"`
}

// POST /api/recipes
func CreateRecipeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		var body CreateRecipeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		in := catalog.RecipeInput{
			Name:             body.Name,
			ItemID:           body.ItemID,
			PortionsPerBatch: body.PortionsPerBatch,
		}
		for _, ing := range body.Ingredients {
			in.Ingredients = append(in.Ingredients, catalog.IngredientInput{
				IngredientID:   ing.IngredientID,
				QuantityNeeded: ing.QuantityNeeded,
			})
		}

		ctx := c.UserContext()
		var r models.Recipe
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			created, err := catalog.New(tx).CreateRecipe(ctx, companyID, in)
			if err != nil {
				return err
			}
			r = created
			return audit.WriteLog(tx, audit.LogOptions{
				CompanyID:   companyID,
				UserID:      auth.UserID(c),
				EntityType:  "recipe",
				EntityID:    r.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Recipe created: %s (%d ingredients)", r.Name, len(r.Ingredients)),
				After:       r,
			})
		})
		if err != nil {
			return httpError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(r)
	}
}

// GET /api/recipes
func ListRecipesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}

		recipes, err := catalog.New(db).ListRecipes(c.UserContext(), companyID)
		if err != nil {
			return err
		}
		return c.JSON(recipes)
	}
}

// GET /api/recipes/:id/ingredients
func ListRecipeIngredientsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID, err := auth.CompanyID(c)
		if err != nil {
			return err
		}
		recipeID, err := paramID(c)
		if err != nil {
			return err
		}

		ings, err := catalog.New(db).IngredientsOf(c.UserContext(), companyID, recipeID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(ings)
	}
}

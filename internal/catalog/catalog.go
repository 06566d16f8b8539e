package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUnknownItem   = errors.New("unknown item")
	ErrUnknownRecipe = errors.New("unknown recipe")
	ErrInvalid       = errors.New("invalid catalog entry")
)

// Catalog gives access to items, recipes and their ingredient requirements.
type Catalog struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// IngredientsOf lists what one portion of the recipe consumes, in the order the
// ingredients were added.
func (c *Catalog) IngredientsOf(ctx context.Context, companyID, recipeID uint) ([]models.RecipeIngredient, error) {
	if _, err := c.Recipe(ctx, companyID, recipeID); err != nil {
		return nil, err
	}

	var out []models.RecipeIngredient
	err := c.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list ingredients of recipe %d: %w", recipeID, err)
	}
	return out, nil
}

func (c *Catalog) Recipe(ctx context.Context, companyID, recipeID uint) (models.Recipe, error) {
	var r models.Recipe
	err := c.db.WithContext(ctx).Where("id = ? AND company_id = ?", recipeID, companyID).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Recipe{}, fmt.Errorf("recipe %d: %w", recipeID, ErrUnknownRecipe)
	}
	if err != nil {
		return models.Recipe{}, fmt.Errorf("get recipe %d: %w", recipeID, err)
	}
	return r, nil
}

// RecipeForItem finds the recipe that produces a batch_portion item.
func (c *Catalog) RecipeForItem(ctx context.Context, companyID, itemID uint) (models.Recipe, error) {
	var r models.Recipe
	err := c.db.WithContext(ctx).
		Where("company_id = ? AND item_id = ?", companyID, itemID).
		Order("id ASC").
		Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Recipe{}, fmt.Errorf("no recipe produces item %d: %w", itemID, ErrUnknownRecipe)
	}
	if err != nil {
		return models.Recipe{}, fmt.Errorf("find recipe of item %d: %w", itemID, err)
	}
	return r, nil
}

// RecipesByItem maps each produced item to its recipe, choosing the same
// recipe as RecipeForItem when several produce it.
func (c *Catalog) RecipesByItem(ctx context.Context, companyID uint) (map[uint]models.Recipe, error) {
	var recipes []models.Recipe
	err := c.db.WithContext(ctx).
		Where("company_id = ? AND item_id IS NOT NULL", companyID).
		Order("id ASC").
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("list recipes by item: %w", err)
	}

	out := make(map[uint]models.Recipe, len(recipes))
	for _, r := range recipes {
		if _, ok := out[*r.ItemID]; !ok {
			out[*r.ItemID] = r
		}
	}
	return out, nil
}

func (c *Catalog) Item(ctx context.Context, companyID, itemID uint) (models.Item, error) {
	var it models.Item
	err := c.db.WithContext(ctx).Where("id = ? AND company_id = ?", itemID, companyID).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Item{}, fmt.Errorf("item %d: %w", itemID, ErrUnknownItem)
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("get item %d: %w", itemID, err)
	}
	return it, nil
}

// ListItems returns the company's items by name. An empty kind lists all kinds.
func (c *Catalog) ListItems(ctx context.Context, companyID uint, kind models.ItemKind, activeOnly bool) ([]models.Item, error) {
	q := c.db.WithContext(ctx).Where("company_id = ?", companyID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var items []models.Item
	if err := q.Order("name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (c *Catalog) ListRecipes(ctx context.Context, companyID uint) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := c.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("company_id = ?", companyID).
		Order("name ASC").
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

type ItemInput struct {
	Name  string
	Kind  models.ItemKind
	Price decimal.Decimal
}

func (c *Catalog) CreateItem(ctx context.Context, companyID uint, in ItemInput) (models.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Item{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !in.Kind.Valid() {
		return models.Item{}, fmt.Errorf("%w: unknown kind %q", ErrInvalid, in.Kind)
	}
	if in.Price.IsNegative() {
		return models.Item{}, fmt.Errorf("%w: price cannot be negative", ErrInvalid)
	}

	it := models.Item{CompanyID: companyID, Name: name, Kind: in.Kind, Price: in.Price, Active: true}
	if err := c.db.WithContext(ctx).Create(&it).Error; err != nil {
		return models.Item{}, fmt.Errorf("create item: %w", err)
	}
	return it, nil
}

type IngredientInput struct {
	IngredientID   uint
	QuantityNeeded int64
}

type RecipeInput struct {
	Name             string
	ItemID           *uint
	PortionsPerBatch int64
	Ingredients      []IngredientInput
}

// CreateRecipe stores a recipe with its ingredient list. The produced item must
// be a batch_portion and every ingredient must belong to the company.
func (c *Catalog) CreateRecipe(ctx context.Context, companyID uint, in RecipeInput) (models.Recipe, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Recipe{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.PortionsPerBatch <= 0 {
		in.PortionsPerBatch = 1
	}

	r := models.Recipe{
		CompanyID:        companyID,
		Name:             name,
		ItemID:           in.ItemID,
		PortionsPerBatch: in.PortionsPerBatch,
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := New(tx)
		if in.ItemID != nil {
			it, err := txc.Item(ctx, companyID, *in.ItemID)
			if err != nil {
				return err
			}
			if it.Kind != models.ItemKindBatchPortion {
				return fmt.Errorf("%w: item %d is %s, recipes produce batch_portion items", ErrInvalid, it.ID, it.Kind)
			}
		}

		if err := tx.Create(&r).Error; err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}

		for _, ing := range in.Ingredients {
			if ing.QuantityNeeded < 0 {
				return fmt.Errorf("%w: ingredient %d quantity cannot be negative", ErrInvalid, ing.IngredientID)
			}
			if _, err := txc.Item(ctx, companyID, ing.IngredientID); err != nil {
				return err
			}
			row := models.RecipeIngredient{
				RecipeID:       r.ID,
				IngredientID:   ing.IngredientID,
				QuantityNeeded: ing.QuantityNeeded,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("add ingredient %d: %w", ing.IngredientID, err)
			}
			r.Ingredients = append(r.Ingredients, row)
		}
		return nil
	})
	if err != nil {
		return models.Recipe{}, err
	}
	return r, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor is the authenticated user performing a write
type Actor struct {
	UserID uint
	Admin  bool
}

// CanModify reports whether the actor may change a recipe written by authorID
func (a Actor) CanModify(authorID uint) bool {
	return a.UserID != 0 && (a.UserID == authorID || a.Admin)
}

// RecipeFilter narrows recipe listings. Zero values disable a criterion.
type RecipeFilter struct {
	AuthorID         uint
	TagSlugs         []string
	FavoritedBy      uint
	InShoppingCartOf uint
}

// RecipeService provides methods to read and write recipes
type RecipeService interface {
	// ListRecipes returns one page of recipes, newest first, and the total match count
	ListRecipes(ctx context.Context, filter RecipeFilter, page Page) ([]models.Recipe, int64, error)
	// GetRecipe retrieves a recipe with author, tags and ingredient amounts
	GetRecipe(ctx context.Context, id uint) (*models.Recipe, error)
	// CreateRecipe validates the submission and stores it with the actor as author
	CreateRecipe(ctx context.Context, actor Actor, input RecipeInput) (*models.Recipe, error)
	// UpdateRecipe applies a partial update; present ingredient or tag lists replace the stored sets
	UpdateRecipe(ctx context.Context, id uint, actor Actor, input RecipeInput) (*models.Recipe, error)
	// DeleteRecipe removes a recipe with its ingredient amounts and the relationships pointing at it
	DeleteRecipe(ctx context.Context, id uint, actor Actor) error
	// RecipesByAuthors returns up to limit newest recipes per author; limit <= 0 means all
	RecipesByAuthors(ctx context.Context, authorIDs []uint, limit int) (map[uint][]models.Recipe, error)
	// CountByAuthors returns the number of recipes per author
	CountByAuthors(ctx context.Context, authorIDs []uint) (map[uint]int64, error)
}

type recipeService struct {
	db *gorm.DB
}

// NewRecipeService creates a new instance of RecipeService
func NewRecipeService(db *gorm.DB) RecipeService {
	return &recipeService{db: db}
}

func withRecipeDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("ingredient_amounts.id") }).
		Preload("Ingredients.Ingredient")
}

func (s *recipeService) filtered(ctx context.Context, filter RecipeFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Recipe{})
	if filter.AuthorID != 0 {
		q = q.Where("recipes.author_id = ?", filter.AuthorID)
	}
	if len(filter.TagSlugs) > 0 {
		tagged := s.db.Table("recipe_tags").
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", filter.TagSlugs)
		q = q.Where("recipes.id IN (?)", tagged)
	}
	if filter.FavoritedBy != 0 {
		favorites := s.db.Model(&models.Favorite{}).Select("recipe_id").Where("user_id = ?", filter.FavoritedBy)
		q = q.Where("recipes.id IN (?)", favorites)
	}
	if filter.InShoppingCartOf != 0 {
		cart := s.db.Model(&models.ShoppingCartEntry{}).Select("recipe_id").Where("user_id = ?", filter.InShoppingCartOf)
		q = q.Where("recipes.id IN (?)", cart)
	}
	return q
}

func (s *recipeService) ListRecipes(ctx context.Context, filter RecipeFilter, page Page) ([]models.Recipe, int64, error) {
	var total int64
	if err := s.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := withRecipeDetails(s.filtered(ctx, filter)).Order("recipes.id DESC")
	if !page.Unbounded() {
		q = q.Offset(page.Offset()).Limit(page.Size)
	}
	var recipes []models.Recipe
	if err := q.Find(&recipes).Error; err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

func (s *recipeService) GetRecipe(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := withRecipeDetails(s.db.WithContext(ctx)).First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &recipe, nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, actor Actor, input RecipeInput) (*models.Recipe, error) {
	v := input.Validate(false)

	var recipeID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateReferences(tx, v, actor.UserID, input, true); err != nil {
			return err
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		recipe := models.Recipe{
			Name:        strings.TrimSpace(*input.Name),
			Text:        *input.Text,
			AuthorID:    actor.UserID,
			CookingTime: *input.CookingTime,
		}
		if input.Image != nil {
			recipe.Image = *input.Image
		}
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return err
		}
		recipeID = recipe.ID

		if err := replaceTags(tx, &recipe, input.Tags); err != nil {
			return err
		}
		return replaceAmounts(tx, recipe.ID, input.Ingredients)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRecipe(ctx, recipeID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, id uint, actor Actor, input RecipeInput) (*models.Recipe, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.lockForWrite(tx, id, actor)
		if err != nil {
			return err
		}

		v := input.Validate(true)
		if err := validateReferences(tx, v, recipe.AuthorID, input, false); err != nil {
			return err
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if input.Name != nil {
			updates["name"] = strings.TrimSpace(*input.Name)
		}
		if input.Text != nil {
			updates["text"] = *input.Text
		}
		if input.CookingTime != nil {
			updates["cooking_time"] = *input.CookingTime
		}
		if input.Image != nil {
			updates["image"] = *input.Image
		}
		if len(updates) > 0 {
			if err := tx.Model(recipe).Updates(updates).Error; err != nil {
				return err
			}
		}

		if input.Tags != nil {
			if err := replaceTags(tx, recipe, input.Tags); err != nil {
				return err
			}
		}
		if input.Ingredients != nil {
			if err := replaceAmounts(tx, recipe.ID, input.Ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetRecipe(ctx, id)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, id uint, actor Actor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.lockForWrite(tx, id, actor)
		if err != nil {
			return err
		}

		for _, model := range []interface{}{&models.IngredientAmount{}, &models.Favorite{}, &models.ShoppingCartEntry{}} {
			if err := tx.Where("recipe_id = ?", recipe.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
}

// lockForWrite loads the recipe inside the transaction and checks that the actor may change it
func (s *recipeService) lockForWrite(tx *gorm.DB, id uint, actor Actor) (*models.Recipe, error) {
	var recipe models.Recipe
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if !actor.CanModify(recipe.AuthorID) {
		return nil, fmt.Errorf("recipe %d belongs to user %d: %w", id, recipe.AuthorID, ErrForbidden)
	}
	return &recipe, nil
}

// replaceTags swaps the recipe's tag set for the given tag ids
func replaceTags(tx *gorm.DB, recipe *models.Recipe, tagIDs []uint) error {
	var tags []models.Tag
	if err := tx.Where("id IN ?", uniqueIDs(tagIDs)).Find(&tags).Error; err != nil {
		return err
	}
	return tx.Model(recipe).Association("Tags").Replace(tags)
}

// replaceAmounts deletes the recipe's ingredient amounts and bulk-inserts the new lines
func replaceAmounts(tx *gorm.DB, recipeID uint, lines []IngredientAmountInput) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.IngredientAmount{}).Error; err != nil {
		return err
	}
	amounts := make([]models.IngredientAmount, 0, len(lines))
	for _, line := range lines {
		amounts = append(amounts, models.IngredientAmount{
			RecipeID:     recipeID,
			IngredientID: line.ID,
			Amount:       line.Amount,
		})
	}
	return tx.Omit(clause.Associations).Create(&amounts).Error
}

func (s *recipeService) RecipesByAuthors(ctx context.Context, authorIDs []uint, limit int) (map[uint][]models.Recipe, error) {
	result := make(map[uint][]models.Recipe, len(authorIDs))
	for _, authorID := range uniqueIDs(authorIDs) {
		q := s.db.WithContext(ctx).
			Select("id", "name", "image", "cooking_time", "author_id").
			Where("author_id = ?", authorID).
			Order("id DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		var recipes []models.Recipe
		if err := q.Find(&recipes).Error; err != nil {
			return nil, err
		}
		result[authorID] = recipes
	}
	return result, nil
}

func (s *recipeService) CountByAuthors(ctx context.Context, authorIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		AuthorID uint
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", uniqueIDs(authorIDs)).
		Group("author_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.AuthorID] = row.Total
	}
	return counts, nil
}

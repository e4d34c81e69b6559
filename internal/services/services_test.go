package services

import (
	"context"
	"testing"

	"github.com/franciscosanchezn/foodgram-api/internal/database"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDatabase(database.DatabaseConfig{Driver: "sqlite", Path: ":memory:", MaxRetries: 1})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedReferenceData(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user, err := NewUserService(db).CreateUser(context.Background(), RegisterInput{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  "password123",
	})
	require.NoError(t, err)
	return user
}

func ingredientID(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	var ingredient models.Ingredient
	require.NoError(t, db.Where("name = ?", name).First(&ingredient).Error)
	return ingredient.ID
}

func tagID(t *testing.T, db *gorm.DB, slug string) uint {
	t.Helper()
	var tag models.Tag
	require.NoError(t, db.Where("slug = ?", slug).First(&tag).Error)
	return tag.ID
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// recipeInput builds a complete create submission
func recipeInput(name string, tags []uint, lines ...IngredientAmountInput) RecipeInput {
	return RecipeInput{
		Name:        strPtr(name),
		Text:        strPtr("Mix and bake."),
		CookingTime: intPtr(30),
		Ingredients: lines,
		Tags:        tags,
	}
}

func createTestRecipe(t *testing.T, db *gorm.DB, author *models.User, name string, lines ...IngredientAmountInput) *models.Recipe {
	t.Helper()
	recipe, err := NewRecipeService(db).CreateRecipe(
		context.Background(),
		Actor{UserID: author.ID},
		recipeInput(name, []uint{tagID(t, db, "breakfast")}, lines...),
	)
	require.NoError(t, err)
	return recipe
}

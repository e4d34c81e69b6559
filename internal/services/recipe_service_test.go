package services

import (
	"context"
	"errors"
	"testing"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRecipe(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewRecipeService(db)
	author := createTestUser(t, db, "chef")
	flour, sugar := ingredientID(t, db, "flour"), ingredientID(t, db, "sugar")
	breakfast, dinner := tagID(t, db, "breakfast"), tagID(t, db, "dinner")

	recipe, err := svc.CreateRecipe(ctx, Actor{UserID: author.ID}, recipeInput("Pancakes", []uint{dinner, breakfast},
		IngredientAmountInput{ID: flour, Amount: 200},
		IngredientAmountInput{ID: sugar, Amount: 50},
	))
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", recipe.Name)
	assert.Equal(t, author.ID, recipe.AuthorID)
	assert.Equal(t, "chef", recipe.Author.Username)
	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, "flour", recipe.Ingredients[0].Ingredient.Name)
	assert.Equal(t, 200, recipe.Ingredients[0].Amount)
	assert.Len(t, recipe.Tags, 2)
}

func TestCreateRecipeRejectsInvalidSubmissions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewRecipeService(db)
	author := createTestUser(t, db, "chef")
	flour := ingredientID(t, db, "flour")
	breakfast := tagID(t, db, "breakfast")

	testCases := []struct {
		name  string
		input RecipeInput
		field string
	}{
		{"empty ingredients", recipeInput("A", []uint{breakfast}), "ingredients"},
		{"repeated ingredient", recipeInput("B", []uint{breakfast},
			IngredientAmountInput{ID: flour, Amount: 1}, IngredientAmountInput{ID: flour, Amount: 2}), "ingredients"},
		{"zero amount", recipeInput("C", []uint{breakfast}, IngredientAmountInput{ID: flour, Amount: 0}), "amount"},
		{"unknown ingredient", recipeInput("D", []uint{breakfast}, IngredientAmountInput{ID: 9999, Amount: 1}), "ingredients"},
		{"unknown tag", recipeInput("E", []uint{9999}, IngredientAmountInput{ID: flour, Amount: 1}), "tags"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRecipe(ctx, Actor{UserID: author.ID}, tt.input)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.True(t, verr.Has(tt.field), "missing %s in %v", tt.field, verr.Fields)
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.Recipe{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRecipeDuplicateName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewRecipeService(db)
	author := createTestUser(t, db, "chef")
	other := createTestUser(t, db, "other")
	flour := ingredientID(t, db, "flour")

	first := createTestRecipe(t, db, author, "Bread", IngredientAmountInput{ID: flour, Amount: 500})

	_, err := svc.CreateRecipe(ctx, Actor{UserID: author.ID},
		recipeInput("Bread", []uint{tagID(t, db, "lunch")}, IngredientAmountInput{ID: flour, Amount: 300}))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{msgDuplicateName}, verr.Fields["name"])

	// Another author may reuse the name
	createTestRecipe(t, db, other, "Bread", IngredientAmountInput{ID: flour, Amount: 300})

	// Renaming through a partial update is not checked
	second := createTestRecipe(t, db, author, "Rolls", IngredientAmountInput{ID: flour, Amount: 100})
	updated, err := svc.UpdateRecipe(ctx, second.ID, Actor{UserID: author.ID}, RecipeInput{Name: strPtr(first.Name)})
	require.NoError(t, err)
	assert.Equal(t, "Bread", updated.Name)
}

func TestUpdateRecipe(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewRecipeService(db)
	author := createTestUser(t, db, "chef")
	flour, sugar, milk := ingredientID(t, db, "flour"), ingredientID(t, db, "sugar"), ingredientID(t, db, "milk")

	recipe := createTestRecipe(t, db, author, "Pancakes",
		IngredientAmountInput{ID: flour, Amount: 200},
		IngredientAmountInput{ID: sugar, Amount: 50},
	)

	t.Run("partial update keeps ingredients", func(t *testing.T) {
		updated, err := svc.UpdateRecipe(ctx, recipe.ID, Actor{UserID: author.ID}, RecipeInput{CookingTime: intPtr(15)})
		require.NoError(t, err)
		assert.Equal(t, 15, updated.CookingTime)
		assert.Len(t, updated.Ingredients, 2)
		assert.Equal(t, "Pancakes", updated.Name)
	})

	t.Run("ingredient list is replaced wholesale", func(t *testing.T) {
		updated, err := svc.UpdateRecipe(ctx, recipe.ID, Actor{UserID: author.ID}, RecipeInput{
			Ingredients: []IngredientAmountInput{{ID: milk, Amount: 250}},
			Tags:        []uint{tagID(t, db, "dinner")},
		})
		require.NoError(t, err)
		require.Len(t, updated.Ingredients, 1)
		assert.Equal(t, "milk", updated.Ingredients[0].Ingredient.Name)
		require.Len(t, updated.Tags, 1)
		assert.Equal(t, "dinner", updated.Tags[0].Slug)

		var amounts int64
		require.NoError(t, db.Model(&models.IngredientAmount{}).Where("recipe_id = ?", recipe.ID).Count(&amounts).Error)
		assert.Equal(t, int64(1), amounts)
	})

	t.Run("invalid update leaves recipe untouched", func(t *testing.T) {
		_, err := svc.UpdateRecipe(ctx, recipe.ID, Actor{UserID: author.ID}, RecipeInput{
			Name:        strPtr("Broken"),
			Ingredients: []IngredientAmountInput{{ID: flour, Amount: -1}},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		stored, err := svc.GetRecipe(ctx, recipe.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pancakes", stored.Name)
		assert.Len(t, stored.Ingredients, 1)
	})

	t.Run("foreign user is forbidden", func(t *testing.T) {
		stranger := createTestUser(t, db, "stranger")
		_, err := svc.UpdateRecipe(ctx, recipe.ID, Actor{UserID: stranger.ID}, RecipeInput{Name: strPtr("Mine")})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin may edit any recipe", func(t *testing.T) {
		admin := createTestUser(t, db, "admin")
		updated, err := svc.UpdateRecipe(ctx, recipe.ID, Actor{UserID: admin.ID, Admin: true}, RecipeInput{Text: strPtr("Edited.")})
		require.NoError(t, err)
		assert.Equal(t, "Edited.", updated.Text)
		assert.Equal(t, author.ID, updated.AuthorID)
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := svc.UpdateRecipe(ctx, 9999, Actor{UserID: author.ID}, RecipeInput{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteRecipe(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewRecipeService(db)
	relations := NewRelationshipService(db, RelationshipOptions{})
	author := createTestUser(t, db, "chef")
	reader := createTestUser(t, db, "reader")
	recipe := createTestRecipe(t, db, author, "Soup", IngredientAmountInput{ID: ingredientID(t, db, "onion"), Amount: 2})

	require.NoError(t, relations.Add(ctx, RelationFavorite, reader.ID, recipe.ID))
	require.NoError(t, relations.Add(ctx, RelationShoppingCart, reader.ID, recipe.ID))

	assert.ErrorIs(t, svc.DeleteRecipe(ctx, recipe.ID, Actor{UserID: reader.ID}), ErrForbidden)
	require.NoError(t, svc.DeleteRecipe(ctx, recipe.ID, Actor{UserID: author.ID}))

	_, err := svc.GetRecipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, model := range []interface{}{&models.IngredientAmount{}, &models.Favorite{}, &models.ShoppingCartEntry{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("recipe_id = ?", recipe.ID).Count(&count).Error)
		assert.Zero(t, count)
	}
	assert.ErrorIs(t, svc.DeleteRecipe(ctx, recipe.ID, Actor{UserID: author.ID}), ErrNotFound)
}

func TestListRecipesFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewRecipeService(db)
	relations := NewRelationshipService(db, RelationshipOptions{})
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	eggs := ingredientID(t, db, "eggs")

	omelette := createTestRecipe(t, db, alice, "Omelette", IngredientAmountInput{ID: eggs, Amount: 3})
	_, err := svc.CreateRecipe(ctx, Actor{UserID: alice.ID},
		recipeInput("Frittata", []uint{tagID(t, db, "dinner")}, IngredientAmountInput{ID: eggs, Amount: 6}))
	require.NoError(t, err)
	scrambled := createTestRecipe(t, db, bob, "Scrambled eggs", IngredientAmountInput{ID: eggs, Amount: 2})

	require.NoError(t, relations.Add(ctx, RelationFavorite, bob.ID, omelette.ID))
	require.NoError(t, relations.Add(ctx, RelationShoppingCart, alice.ID, scrambled.ID))

	names := func(recipes []models.Recipe) []string {
		out := make([]string, 0, len(recipes))
		for _, r := range recipes {
			out = append(out, r.Name)
		}
		return out
	}

	testCases := []struct {
		name     string
		filter   RecipeFilter
		expected []string
	}{
		{"all newest first", RecipeFilter{}, []string{"Scrambled eggs", "Frittata", "Omelette"}},
		{"by author", RecipeFilter{AuthorID: alice.ID}, []string{"Frittata", "Omelette"}},
		{"by tag", RecipeFilter{TagSlugs: []string{"dinner"}}, []string{"Frittata"}},
		{"any tag matches", RecipeFilter{TagSlugs: []string{"dinner", "breakfast"}}, []string{"Scrambled eggs", "Frittata", "Omelette"}},
		{"favorited", RecipeFilter{FavoritedBy: bob.ID}, []string{"Omelette"}},
		{"in cart", RecipeFilter{InShoppingCartOf: alice.ID}, []string{"Scrambled eggs"}},
		{"combined", RecipeFilter{AuthorID: bob.ID, FavoritedBy: bob.ID}, []string{}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			recipes, total, err := svc.ListRecipes(ctx, tt.filter, Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names(recipes))
			assert.Equal(t, int64(len(tt.expected)), total)
		})
	}

	t.Run("paginated", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeFilter{}, Page{Number: 2, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []string{"Omelette"}, names(recipes))
	})
}

func TestRecipesByAuthors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewRecipeService(db)
	author := createTestUser(t, db, "chef")
	idle := createTestUser(t, db, "idle")
	salt := ingredientID(t, db, "salt")

	for _, name := range []string{"One", "Two", "Three", "Four"} {
		createTestRecipe(t, db, author, name, IngredientAmountInput{ID: salt, Amount: 1})
	}

	previews, err := svc.RecipesByAuthors(ctx, []uint{author.ID, idle.ID}, 3)
	require.NoError(t, err)
	require.Len(t, previews[author.ID], 3)
	assert.Equal(t, "Four", previews[author.ID][0].Name)
	assert.Empty(t, previews[idle.ID])

	counts, err := svc.CountByAuthors(ctx, []uint{author.ID, idle.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[author.ID])
	assert.Zero(t, counts[idle.ID])
}

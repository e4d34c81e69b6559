package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecipeInputValidate(t *testing.T) {
	valid := func() RecipeInput {
		return recipeInput("Pancakes", []uint{1}, IngredientAmountInput{ID: 1, Amount: 100}, IngredientAmountInput{ID: 2, Amount: 2})
	}

	testCases := []struct {
		name    string
		mutate  func(in *RecipeInput)
		partial bool
		fields  []string
	}{
		{
			name:   "valid submission",
			mutate: func(in *RecipeInput) {},
		},
		{
			name:   "empty ingredient list",
			mutate: func(in *RecipeInput) { in.Ingredients = []IngredientAmountInput{} },
			fields: []string{"ingredients"},
		},
		{
			name: "repeated ingredient id",
			mutate: func(in *RecipeInput) {
				in.Ingredients = []IngredientAmountInput{{ID: 1, Amount: 100}, {ID: 1, Amount: 50}}
			},
			fields: []string{"ingredients"},
		},
		{
			name:   "zero amount",
			mutate: func(in *RecipeInput) { in.Ingredients[0].Amount = 0 },
			fields: []string{"amount"},
		},
		{
			name:   "negative amount",
			mutate: func(in *RecipeInput) { in.Ingredients[1].Amount = -5 },
			fields: []string{"amount"},
		},
		{
			name:   "amount above the column range",
			mutate: func(in *RecipeInput) { in.Ingredients[0].Amount = MaxIngredientAmount + 1 },
			fields: []string{"amount"},
		},
		{
			name:   "largest amount is accepted",
			mutate: func(in *RecipeInput) { in.Ingredients[0].Amount = MaxIngredientAmount },
		},
		{
			name:   "negative cooking time",
			mutate: func(in *RecipeInput) { in.CookingTime = intPtr(-1) },
			fields: []string{"cooking_time"},
		},
		{
			name:   "zero cooking time is accepted",
			mutate: func(in *RecipeInput) { in.CookingTime = intPtr(0) },
		},
		{
			name:   "blank name",
			mutate: func(in *RecipeInput) { in.Name = strPtr("   ") },
			fields: []string{"name"},
		},
		{
			name:   "duplicate tags",
			mutate: func(in *RecipeInput) { in.Tags = []uint{1, 1} },
			fields: []string{"tags"},
		},
		{
			name: "every violation reported together",
			mutate: func(in *RecipeInput) {
				in.Ingredients = []IngredientAmountInput{{ID: 3, Amount: 0}, {ID: 3, Amount: 1}}
				in.CookingTime = intPtr(-10)
				in.Tags = []uint{}
			},
			fields: []string{"amount", "cooking_time", "ingredients", "tags"},
		},
		{
			name:   "missing fields on create",
			mutate: func(in *RecipeInput) { *in = RecipeInput{} },
			fields: []string{"cooking_time", "ingredients", "name", "tags", "text"},
		},
		{
			name:    "missing fields allowed on partial update",
			mutate:  func(in *RecipeInput) { *in = RecipeInput{Name: strPtr("Waffles")} },
			partial: true,
		},
		{
			name:    "present empty ingredient list rejected on partial update",
			mutate:  func(in *RecipeInput) { *in = RecipeInput{Ingredients: []IngredientAmountInput{}} },
			partial: true,
			fields:  []string{"ingredients"},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			v := in.Validate(tt.partial)
			if len(tt.fields) == 0 {
				assert.NoError(t, v.OrNil())
				return
			}
			assert.Error(t, v.OrNil())
			var got []string
			for field := range v.Fields {
				got = append(got, field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	v := NewValidationError("tags", "b")
	v.Add("amount", "a")
	assert.Equal(t, "validation failed: amount: a, tags: b", v.Error())

	var empty *ValidationError
	assert.NoError(t, empty.OrNil())
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Number: 1, Size: 6}.Offset())
	assert.Equal(t, 12, Page{Number: 3, Size: 6}.Offset())
	assert.Equal(t, 0, Page{Number: 0, Size: 6}.Offset())
	assert.Equal(t, math.MaxInt, Page{Number: math.MaxInt, Size: 6}.Offset())
	assert.True(t, Page{}.Unbounded())
}

package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"gorm.io/gorm"
)

const maxRecipeNameLength = 200

// MaxIngredientAmount is the largest quantity one recipe line may carry
const MaxIngredientAmount = math.MaxInt32

// Field-level messages reported for rejected recipe submissions
const (
	msgRequired            = "This field is required."
	msgEmptyIngredients    = "Ingredient list must not be empty."
	msgDuplicateIngredient = "Ingredients must be unique."
	msgNonPositiveAmount   = "Ingredient amount must be greater than zero."
	msgAmountTooLarge      = "Ingredient amount must not exceed 2147483647."
	msgNegativeCookTime    = "Cooking time cannot be negative."
	msgEmptyTags           = "Tag list must not be empty."
	msgDuplicateTag        = "Tags must be unique."
	msgBlankName           = "Name must not be blank."
	msgBlankText           = "Description must not be blank."
	msgDuplicateName       = "You have already created a recipe with this name."
)

// IngredientAmountInput is one ingredient line of a recipe submission
type IngredientAmountInput struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// RecipeInput is a recipe create or update submission.
// A nil field was absent from the request; on update absent fields keep their stored value.
type RecipeInput struct {
	Name        *string                 `json:"name"`
	Text        *string                 `json:"text"`
	CookingTime *int                    `json:"cooking_time"`
	Image       *string                 `json:"image"`
	Ingredients []IngredientAmountInput `json:"ingredients"`
	Tags        []uint                  `json:"tags"`
}

// Validate checks the rules that need no database access and reports every violation.
// When partial is false all fields except the image are required.
func (in RecipeInput) Validate(partial bool) *ValidationError {
	v := &ValidationError{}

	if in.Name == nil {
		if !partial {
			v.Add("name", msgRequired)
		}
	} else if name := strings.TrimSpace(*in.Name); name == "" {
		v.Add("name", msgBlankName)
	} else if utf8.RuneCountInString(name) > maxRecipeNameLength {
		v.Add("name", fmt.Sprintf("Name must be at most %d characters.", maxRecipeNameLength))
	}

	if in.Text == nil {
		if !partial {
			v.Add("text", msgRequired)
		}
	} else if strings.TrimSpace(*in.Text) == "" {
		v.Add("text", msgBlankText)
	}

	if in.CookingTime == nil {
		if !partial {
			v.Add("cooking_time", msgRequired)
		}
	} else if *in.CookingTime < 0 {
		v.Add("cooking_time", msgNegativeCookTime)
	}

	if in.Ingredients == nil {
		if !partial {
			v.Add("ingredients", msgRequired)
		}
	} else {
		validateIngredientLines(v, in.Ingredients)
	}

	if in.Tags == nil {
		if !partial {
			v.Add("tags", msgRequired)
		}
	} else if len(in.Tags) == 0 {
		v.Add("tags", msgEmptyTags)
	} else if len(uniqueIDs(in.Tags)) != len(in.Tags) {
		v.Add("tags", msgDuplicateTag)
	}

	return v
}

func validateIngredientLines(v *ValidationError, lines []IngredientAmountInput) {
	if len(lines) == 0 {
		v.Add("ingredients", msgEmptyIngredients)
		return
	}
	seen := make(map[uint]bool, len(lines))
	duplicate, nonPositive, tooLarge := false, false, false
	for _, line := range lines {
		if seen[line.ID] {
			duplicate = true
		}
		seen[line.ID] = true
		if line.Amount <= 0 {
			nonPositive = true
		}
		if line.Amount > MaxIngredientAmount {
			tooLarge = true
		}
	}
	if duplicate {
		v.Add("ingredients", msgDuplicateIngredient)
	}
	if nonPositive {
		v.Add("amount", msgNonPositiveAmount)
	}
	if tooLarge {
		v.Add("amount", msgAmountTooLarge)
	}
}

// validateReferences adds messages for unknown ingredients and tags and, on create,
// for a name already used by the same author.
func validateReferences(tx *gorm.DB, v *ValidationError, authorID uint, in RecipeInput, creating bool) error {
	if len(in.Ingredients) > 0 && !v.Has("ingredients") {
		ids := make([]uint, 0, len(in.Ingredients))
		for _, line := range in.Ingredients {
			ids = append(ids, line.ID)
		}
		missing, err := missingIDs(tx, &models.Ingredient{}, ids)
		if err != nil {
			return err
		}
		for _, id := range missing {
			v.Add("ingredients", fmt.Sprintf("Ingredient with id %d does not exist.", id))
		}
	}

	if len(in.Tags) > 0 && !v.Has("tags") {
		missing, err := missingIDs(tx, &models.Tag{}, in.Tags)
		if err != nil {
			return err
		}
		for _, id := range missing {
			v.Add("tags", fmt.Sprintf("Tag with id %d does not exist.", id))
		}
	}

	if creating && in.Name != nil && !v.Has("name") {
		var count int64
		err := tx.Model(&models.Recipe{}).
			Where("author_id = ? AND name = ?", authorID, strings.TrimSpace(*in.Name)).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			v.Add("name", msgDuplicateName)
		}
	}
	return nil
}

// missingIDs returns the ids, sorted, that have no row in the model's table
func missingIDs(tx *gorm.DB, model any, ids []uint) ([]uint, error) {
	wanted := uniqueIDs(ids)
	var found []uint
	if err := tx.Model(model).Where("id IN ?", wanted).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	present := make(map[uint]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []uint
	for _, id := range wanted {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

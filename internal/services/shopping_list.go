package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"gorm.io/gorm"
)

// ShoppingListLine is one aggregated ingredient of a shopping list
type ShoppingListLine struct {
	Name  string
	Unit  string
	Total int64
}

// CartRow is one ingredient amount of a recipe in a user's cart
type CartRow struct {
	Name   string
	Unit   string
	Amount int64
}

// ShoppingListService builds the merged ingredient list of a user's shopping cart
type ShoppingListService interface {
	ShoppingList(ctx context.Context, userID uint) ([]ShoppingListLine, error)
}

type shoppingListService struct {
	db *gorm.DB
}

func NewShoppingListService(db *gorm.DB) ShoppingListService {
	return &shoppingListService{db: db}
}

func (s *shoppingListService) ShoppingList(ctx context.Context, userID uint) ([]ShoppingListLine, error) {
	var rows []CartRow
	err := s.db.WithContext(ctx).
		Model(&models.IngredientAmount{}).
		Select("ingredients.name AS name, ingredients.measurement_unit AS unit, ingredient_amounts.amount AS amount").
		Joins("JOIN shopping_cart ON shopping_cart.recipe_id = ingredient_amounts.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = ingredient_amounts.ingredient_id").
		Where("shopping_cart.user_id = ?", userID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load shopping cart of user %d: %w", userID, err)
	}
	return AggregateShoppingList(rows)
}

// AggregateShoppingList sums amounts per (name, unit), ordered by name then unit.
// A total that does not fit in int64 fails with ErrAmountOverflow.
func AggregateShoppingList(rows []CartRow) ([]ShoppingListLine, error) {
	type key struct{ name, unit string }
	totals := make(map[key]int64)
	for _, row := range rows {
		k := key{row.Name, row.Unit}
		sum := totals[k]
		if (row.Amount > 0 && sum > math.MaxInt64-row.Amount) || (row.Amount < 0 && sum < math.MinInt64-row.Amount) {
			return nil, fmt.Errorf("%s (%s): %w", row.Name, row.Unit, ErrAmountOverflow)
		}
		totals[k] = sum + row.Amount
	}

	lines := make([]ShoppingListLine, 0, len(totals))
	for k, total := range totals {
		lines = append(lines, ShoppingListLine{Name: k.name, Unit: k.unit, Total: total})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Name != lines[j].Name {
			return lines[i].Name < lines[j].Name
		}
		return lines[i].Unit < lines[j].Unit
	})
	return lines, nil
}

// RenderShoppingList formats the lines as a plain text document
func RenderShoppingList(lines []ShoppingListLine) string {
	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "%s (%s) - %d\n", line.Name, line.Unit, line.Total)
	}
	return b.String()
}

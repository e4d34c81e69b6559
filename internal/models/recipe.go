package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Ingredient is static reference data: a product name and the unit it is measured in
type Ingredient struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"size:200;not null;index" json:"name"`
	MeasurementUnit string `gorm:"size:200;not null" json:"measurement_unit"`
	// NameLower backs case-insensitive search; SQLite's LOWER only folds ASCII
	NameLower string `gorm:"size:200;not null;default:'';index" json:"-"`
}

// BeforeSave keeps NameLower in step with Name
func (i *Ingredient) BeforeSave(tx *gorm.DB) error {
	i.NameLower = strings.ToLower(i.Name)
	return nil
}

// Tag labels recipes, e.g. "breakfast"
type Tag struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:200;not null" json:"name"`
	Color string `gorm:"size:7;not null" json:"color"`
	Slug  string `gorm:"size:200;uniqueIndex;not null" json:"slug"`
}

// Recipe is authored by a user and owns its IngredientAmount rows
type Recipe struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:200;not null;index:idx_recipe_author_name"`
	Text        string `gorm:"type:text;not null"`
	AuthorID    uint   `gorm:"not null;index:idx_recipe_author_name"`
	Author      User   `gorm:"foreignKey:AuthorID"`
	CookingTime int    `gorm:"not null"`
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Ingredients []IngredientAmount `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	Tags        []Tag              `gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE"`
}

// IngredientAmount links a recipe to an ingredient with a quantity.
// An ingredient appears at most once per recipe.
type IngredientAmount struct {
	ID           uint       `gorm:"primaryKey"`
	RecipeID     uint       `gorm:"not null;uniqueIndex:idx_amount_recipe_ingredient"`
	IngredientID uint       `gorm:"not null;uniqueIndex:idx_amount_recipe_ingredient"`
	Ingredient   Ingredient `gorm:"foreignKey:IngredientID"`
	Amount       int        `gorm:"not null"`
}

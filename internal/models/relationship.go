package models

import (
	"time"
)

// Favorite marks a recipe as a favorite of a user.
// The combination of UserID and RecipeID must be unique.
type Favorite struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_favorite_user_recipe;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// ShoppingCartEntry queues a recipe for the user's shopping list
type ShoppingCartEntry struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe"`
	RecipeID  uint      `gorm:"not null;uniqueIndex:idx_cart_user_recipe;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ShoppingCartEntry) TableName() string {
	return "shopping_cart"
}

// Subscription records that SubscriberID follows AuthorID
type Subscription struct {
	ID           uint      `gorm:"primaryKey"`
	SubscriberID uint      `gorm:"not null;uniqueIndex:idx_subscription_pair"`
	AuthorID     uint      `gorm:"not null;uniqueIndex:idx_subscription_pair;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

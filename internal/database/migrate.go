package database

import (
	"errors"
	"fmt"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for every persisted model
func Migrate(db *gorm.DB) error {
	log.Info("Migrating database schema")
	err := db.AutoMigrate(
		&models.User{},
		&models.Ingredient{},
		&models.Tag{},
		&models.Recipe{},
		&models.IngredientAmount{},
		&models.Favorite{},
		&models.ShoppingCartEntry{},
		&models.Subscription{},
		&models.OAuthClient{},
		&models.OAuthToken{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return backfillIngredientNames(db)
}

// backfillIngredientNames fills the search column of rows stored before it existed
func backfillIngredientNames(db *gorm.DB) error {
	var pending []models.Ingredient
	if err := db.Where("name_lower = ''").Find(&pending).Error; err != nil {
		return fmt.Errorf("load ingredients to backfill: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	log.WithField("ingredients", len(pending)).Info("Backfilling ingredient search names")
	return db.Transaction(func(tx *gorm.DB) error {
		for i := range pending {
			if err := tx.Save(&pending[i]).Error; err != nil {
				return fmt.Errorf("backfill ingredient %d: %w", pending[i].ID, err)
			}
		}
		return nil
	})
}

// DefaultTags are created on an empty database
var DefaultTags = []models.Tag{
	{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
	{Name: "Lunch", Color: "#eb4034", Slug: "lunch"},
	{Name: "Dinner", Color: "#8908a3", Slug: "dinner"},
}

// DefaultIngredients is a starter set of reference ingredients for an empty database
var DefaultIngredients = []models.Ingredient{
	{Name: "butter", MeasurementUnit: "g"},
	{Name: "eggs", MeasurementUnit: "pcs"},
	{Name: "flour", MeasurementUnit: "g"},
	{Name: "milk", MeasurementUnit: "ml"},
	{Name: "olive oil", MeasurementUnit: "tbsp"},
	{Name: "onion", MeasurementUnit: "pcs"},
	{Name: "potatoes", MeasurementUnit: "g"},
	{Name: "salt", MeasurementUnit: "pinch"},
	{Name: "sugar", MeasurementUnit: "g"},
	{Name: "tomatoes", MeasurementUnit: "g"},
}

// SeedReferenceData inserts default tags and ingredients when their tables are empty
func SeedReferenceData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Tag{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		log.WithField("tags", len(DefaultTags)).Info("Seeding default tags")
		tags := append([]models.Tag(nil), DefaultTags...)
		if err := db.Create(&tags).Error; err != nil {
			return fmt.Errorf("seed tags: %w", err)
		}
	}

	if err := db.Model(&models.Ingredient{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		log.WithField("ingredients", len(DefaultIngredients)).Info("Seeding default ingredients")
		ingredients := append([]models.Ingredient(nil), DefaultIngredients...)
		if err := db.CreateInBatches(&ingredients, 100).Error; err != nil {
			return fmt.Errorf("seed ingredients: %w", err)
		}
	}
	return nil
}

// EnsureOAuthClient registers the first-party client used for password logins.
// An existing client keeps its row but gets the configured secret.
func EnsureOAuthClient(db *gorm.DB, clientID, clientSecret, domain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash client secret: %w", err)
	}

	var client models.OAuthClient
	err = db.Where("id = ?", clientID).First(&client).Error
	switch {
	case err == nil:
		if client.VerifyPassword(clientSecret) {
			return nil
		}
		log.WithField("client_id", clientID).Info("Rotating first-party OAuth client secret")
		return db.Model(&client).Update("secret", string(hash)).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.WithFields(logrus.Fields{"client_id": clientID, "domain": domain}).Info("Registering first-party OAuth client")
		return db.Create(&models.OAuthClient{
			ID:     clientID,
			Secret: string(hash),
			Name:   "Foodgram web",
			Domain: domain,
		}).Error
	default:
		return err
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const defaultSearchCacheSize = 256

// IngredientService reads the ingredient reference data.
// Ingredients are bulk-loaded once, so prefix searches are cached.
type IngredientService interface {
	// SearchIngredients returns ingredients whose name starts with prefix, case-insensitively
	SearchIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error)
	GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error)
}

type ingredientService struct {
	db    *gorm.DB
	cache *lru.Cache
	group singleflight.Group
}

// NewIngredientService creates an IngredientService caching up to cacheSize distinct searches
func NewIngredientService(db *gorm.DB, cacheSize int) (IngredientService, error) {
	if cacheSize <= 0 {
		cacheSize = defaultSearchCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create ingredient cache: %w", err)
	}
	return &ingredientService{db: db, cache: cache}, nil
}

func (s *ingredientService) SearchIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error) {
	key := strings.ToLower(strings.TrimSpace(prefix))
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]models.Ingredient), nil
	}

	// Waiters on the same key share this query; one cancelled caller must not fail them
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		q := s.db.WithContext(shared).Order("name").Order("id")
		if key != "" {
			q = q.Where(`name_lower LIKE ? ESCAPE '\'`, escapeLike(key)+"%")
		}
		var ingredients []models.Ingredient
		if err := q.Find(&ingredients).Error; err != nil {
			return nil, err
		}
		s.cache.Add(key, ingredients)
		return ingredients, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Ingredient), nil
}

func (s *ingredientService) GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ingredient %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &ingredient, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"gorm.io/gorm"
)

// RelationKind names one kind of user-owned relationship
type RelationKind string

const (
	RelationFavorite     RelationKind = "favorite"
	RelationShoppingCart RelationKind = "shopping_cart"
	RelationSubscription RelationKind = "subscription"
)

// TargetType is the entity a relationship points at
type TargetType string

const (
	TargetRecipe TargetType = "recipe"
	TargetUser   TargetType = "user"
)

// relationRule configures the generic guard for one relationship kind
type relationRule struct {
	target           TargetType
	model            func() any
	newRow           func(actorID, targetID uint) any
	actorColumn      string
	targetColumn     string
	errorField       string
	duplicateMessage string
	missingMessage   string
	selfMessage      string
}

var relationRules = map[RelationKind]relationRule{
	RelationFavorite: {
		target:           TargetRecipe,
		model:            func() any { return &models.Favorite{} },
		newRow:           func(a, t uint) any { return &models.Favorite{UserID: a, RecipeID: t} },
		actorColumn:      "user_id",
		targetColumn:     "recipe_id",
		errorField:       "recipe",
		duplicateMessage: "Recipe is already in favorites.",
		missingMessage:   "This favorite does not exist.",
	},
	RelationShoppingCart: {
		target:           TargetRecipe,
		model:            func() any { return &models.ShoppingCartEntry{} },
		newRow:           func(a, t uint) any { return &models.ShoppingCartEntry{UserID: a, RecipeID: t} },
		actorColumn:      "user_id",
		targetColumn:     "recipe_id",
		errorField:       "recipe",
		duplicateMessage: "Recipe is already in the shopping cart.",
		missingMessage:   "This recipe was not added to the shopping cart.",
	},
	RelationSubscription: {
		target:           TargetUser,
		model:            func() any { return &models.Subscription{} },
		newRow:           func(a, t uint) any { return &models.Subscription{SubscriberID: a, AuthorID: t} },
		actorColumn:      "subscriber_id",
		targetColumn:     "author_id",
		errorField:       "author",
		duplicateMessage: "You are already subscribed to this user.",
		missingMessage:   "This subscription does not exist.",
		selfMessage:      "You cannot subscribe to yourself.",
	},
}

// Target returns the entity type the kind points at
func (k RelationKind) Target() TargetType {
	return relationRules[k].target
}

// Valid reports whether the kind is configured
func (k RelationKind) Valid() bool {
	_, ok := relationRules[k]
	return ok
}

// RelationshipOptions tunes the guard
type RelationshipOptions struct {
	// AllowSelfSubscription lets a user subscribe to themselves
	AllowSelfSubscription bool
}

// RelationshipService creates and removes favorites, shopping cart entries and subscriptions
type RelationshipService interface {
	// Add creates the relationship unless an identical pair exists
	Add(ctx context.Context, kind RelationKind, actorID, targetID uint) error
	// Remove deletes an existing relationship
	Remove(ctx context.Context, kind RelationKind, actorID, targetID uint) error
	// Exists reports whether the actor holds the relationship with the target
	Exists(ctx context.Context, kind RelationKind, actorID, targetID uint) (bool, error)
	// Lookup reports, for each target id, whether the actor holds the relationship
	Lookup(ctx context.Context, kind RelationKind, actorID uint, targetIDs []uint) (map[uint]bool, error)
	// TargetIDs lists the targets of the actor's relationships, newest first
	TargetIDs(ctx context.Context, kind RelationKind, actorID uint, page Page) ([]uint, int64, error)
}

type relationshipService struct {
	db   *gorm.DB
	opts RelationshipOptions
}

// NewRelationshipService creates a new instance of RelationshipService
func NewRelationshipService(db *gorm.DB, opts RelationshipOptions) RelationshipService {
	return &relationshipService{db: db, opts: opts}
}

func lookupRule(kind RelationKind) (relationRule, error) {
	rule, ok := relationRules[kind]
	if !ok {
		return relationRule{}, fmt.Errorf("unknown relationship kind %q", kind)
	}
	return rule, nil
}

func (s *relationshipService) Add(ctx context.Context, kind RelationKind, actorID, targetID uint) error {
	rule, err := lookupRule(kind)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := targetExists(tx, rule.target, targetID); err != nil {
			return err
		}
		if rule.selfMessage != "" && actorID == targetID && !s.opts.AllowSelfSubscription {
			return &RelationError{Kind: kind, Field: rule.errorField, Message: rule.selfMessage, Err: ErrSelfRelation}
		}

		duplicate := &RelationError{Kind: kind, Field: rule.errorField, Message: rule.duplicateMessage, Err: ErrDuplicateRelation}
		found, err := pairExists(tx, rule, actorID, targetID)
		if err != nil {
			return err
		}
		if found {
			return duplicate
		}

		// The unique index catches a concurrent identical insert
		if err := tx.Create(rule.newRow(actorID, targetID)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicate
			}
			return err
		}
		return nil
	})
}

func (s *relationshipService) Remove(ctx context.Context, kind RelationKind, actorID, targetID uint) error {
	rule, err := lookupRule(kind)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := targetExists(tx, rule.target, targetID); err != nil {
			return err
		}
		result := tx.
			Where(rule.actorColumn+" = ? AND "+rule.targetColumn+" = ?", actorID, targetID).
			Delete(rule.model())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &RelationError{Kind: kind, Field: rule.errorField, Message: rule.missingMessage, Err: ErrRelationNotFound}
		}
		return nil
	})
}

func (s *relationshipService) Exists(ctx context.Context, kind RelationKind, actorID, targetID uint) (bool, error) {
	rule, err := lookupRule(kind)
	if err != nil {
		return false, err
	}
	return pairExists(s.db.WithContext(ctx), rule, actorID, targetID)
}

func (s *relationshipService) Lookup(ctx context.Context, kind RelationKind, actorID uint, targetIDs []uint) (map[uint]bool, error) {
	rule, err := lookupRule(kind)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]bool, len(targetIDs))
	if actorID == 0 || len(targetIDs) == 0 {
		return result, nil
	}

	var held []uint
	err = s.db.WithContext(ctx).Model(rule.model()).
		Where(rule.actorColumn+" = ? AND "+rule.targetColumn+" IN ?", actorID, uniqueIDs(targetIDs)).
		Pluck(rule.targetColumn, &held).Error
	if err != nil {
		return nil, err
	}
	for _, id := range held {
		result[id] = true
	}
	return result, nil
}

func (s *relationshipService) TargetIDs(ctx context.Context, kind RelationKind, actorID uint, page Page) ([]uint, int64, error) {
	rule, err := lookupRule(kind)
	if err != nil {
		return nil, 0, err
	}
	scoped := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(rule.model()).Where(rule.actorColumn+" = ?", actorID)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := scoped().Order("id DESC")
	if !page.Unbounded() {
		q = q.Offset(page.Offset()).Limit(page.Size)
	}
	var ids []uint
	if err := q.Pluck(rule.targetColumn, &ids).Error; err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}

func pairExists(db *gorm.DB, rule relationRule, actorID, targetID uint) (bool, error) {
	if actorID == 0 {
		return false, nil
	}
	var count int64
	err := db.Model(rule.model()).
		Where(rule.actorColumn+" = ? AND "+rule.targetColumn+" = ?", actorID, targetID).
		Count(&count).Error
	return count > 0, err
}

func targetExists(tx *gorm.DB, target TargetType, id uint) error {
	var model any
	switch target {
	case TargetRecipe:
		model = &models.Recipe{}
	case TargetUser:
		model = &models.User{}
	default:
		return fmt.Errorf("unknown relationship target %q", target)
	}

	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s %d: %w", target, id, ErrNotFound)
	}
	return nil
}

// Package presenter shapes stored entities into API payloads, adding the
// flags that depend on who is asking.
package presenter

import (
	"context"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
}

// SetLogLevel aligns the package logger with the application log level
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

// Anonymous is the viewer id of an unauthenticated request
const Anonymous uint = 0

// UserResponse is a public profile with the viewer's subscription flag
type UserResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

// IngredientAmountResponse is one ingredient line of a recipe
type IngredientAmountResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeResponse is the full recipe with flags relative to the viewer
type RecipeResponse struct {
	ID               uint                       `json:"id"`
	Tags             []models.Tag               `json:"tags"`
	Author           UserResponse               `json:"author"`
	Ingredients      []IngredientAmountResponse `json:"ingredients"`
	IsFavorited      bool                       `json:"is_favorited"`
	IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
	Name             string                     `json:"name"`
	Image            string                     `json:"image"`
	Text             string                     `json:"text"`
	CookingTime      int                        `json:"cooking_time"`
}

// ShortRecipeResponse is the compact recipe used in relationship responses and previews
type ShortRecipeResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// SubscriptionResponse is a followed author with a preview of their recipes
type SubscriptionResponse struct {
	UserResponse
	Recipes      []ShortRecipeResponse `json:"recipes"`
	RecipesCount int64                 `json:"recipes_count"`
}

// Presenter builds responses relative to a viewer
type Presenter struct {
	relations services.RelationshipService
	recipes   services.RecipeService
}

// New creates a Presenter reading relationship flags and author previews from the given services
func New(relations services.RelationshipService, recipes services.RecipeService) *Presenter {
	return &Presenter{relations: relations, recipes: recipes}
}

// flags reports which targets the viewer holds a relationship with.
// Anonymous viewers and lookup failures yield no flags.
func (p *Presenter) flags(ctx context.Context, kind services.RelationKind, viewerID uint, targetIDs []uint) map[uint]bool {
	if viewerID == Anonymous || len(targetIDs) == 0 {
		return map[uint]bool{}
	}
	held, err := p.relations.Lookup(ctx, kind, viewerID, targetIDs)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"kind":    kind,
			"viewer":  viewerID,
			"targets": len(targetIDs),
		}).Error("Failed to compute relationship flags")
		return map[uint]bool{}
	}
	return held
}

// Users renders profiles with one subscription lookup for the whole batch
func (p *Presenter) Users(ctx context.Context, viewerID uint, users []models.User) []UserResponse {
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	subscribed := p.flags(ctx, services.RelationSubscription, viewerID, ids)

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u, subscribed[u.ID]))
	}
	return out
}

func (p *Presenter) User(ctx context.Context, viewerID uint, user *models.User) UserResponse {
	return p.Users(ctx, viewerID, []models.User{*user})[0]
}

// Recipes renders recipes with one favorite and one cart lookup for the whole batch
func (p *Presenter) Recipes(ctx context.Context, viewerID uint, recipes []models.Recipe) []RecipeResponse {
	recipeIDs := make([]uint, 0, len(recipes))
	authorIDs := make([]uint, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}
	favorited := p.flags(ctx, services.RelationFavorite, viewerID, recipeIDs)
	inCart := p.flags(ctx, services.RelationShoppingCart, viewerID, recipeIDs)
	subscribed := p.flags(ctx, services.RelationSubscription, viewerID, authorIDs)

	out := make([]RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		ingredients := make([]IngredientAmountResponse, 0, len(r.Ingredients))
		for _, a := range r.Ingredients {
			ingredients = append(ingredients, IngredientAmountResponse{
				ID:              a.IngredientID,
				Name:            a.Ingredient.Name,
				MeasurementUnit: a.Ingredient.MeasurementUnit,
				Amount:          a.Amount,
			})
		}
		tags := r.Tags
		if tags == nil {
			tags = []models.Tag{}
		}
		out = append(out, RecipeResponse{
			ID:               r.ID,
			Tags:             tags,
			Author:           userResponse(r.Author, subscribed[r.AuthorID]),
			Ingredients:      ingredients,
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		})
	}
	return out
}

func (p *Presenter) Recipe(ctx context.Context, viewerID uint, recipe *models.Recipe) RecipeResponse {
	return p.Recipes(ctx, viewerID, []models.Recipe{*recipe})[0]
}

// Subscriptions renders followed authors with up to recipesLimit of their newest recipes
func (p *Presenter) Subscriptions(ctx context.Context, viewerID uint, authors []models.User, recipesLimit int) ([]SubscriptionResponse, error) {
	ids := make([]uint, 0, len(authors))
	for _, a := range authors {
		ids = append(ids, a.ID)
	}
	previews, err := p.recipes.RecipesByAuthors(ctx, ids, recipesLimit)
	if err != nil {
		return nil, err
	}
	counts, err := p.recipes.CountByAuthors(ctx, ids)
	if err != nil {
		return nil, err
	}
	subscribed := p.flags(ctx, services.RelationSubscription, viewerID, ids)

	out := make([]SubscriptionResponse, 0, len(authors))
	for _, a := range authors {
		out = append(out, SubscriptionResponse{
			UserResponse: userResponse(a, subscribed[a.ID]),
			Recipes:      ShortRecipes(previews[a.ID]),
			RecipesCount: counts[a.ID],
		})
	}
	return out, nil
}

// Subscription renders a single followed author
func (p *Presenter) Subscription(ctx context.Context, viewerID uint, author *models.User, recipesLimit int) (SubscriptionResponse, error) {
	out, err := p.Subscriptions(ctx, viewerID, []models.User{*author}, recipesLimit)
	if err != nil {
		return SubscriptionResponse{}, err
	}
	return out[0], nil
}

func ShortRecipe(r *models.Recipe) ShortRecipeResponse {
	return ShortRecipeResponse{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

func ShortRecipes(recipes []models.Recipe) []ShortRecipeResponse {
	out := make([]ShortRecipeResponse, 0, len(recipes))
	for i := range recipes {
		out = append(out, ShortRecipe(&recipes[i]))
	}
	return out
}

func userResponse(u models.User, subscribed bool) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}

package controllers

import (
	"net/http"
	"strconv"

	"github.com/franciscosanchezn/foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/presenter"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

// RelationshipController serves the create/delete endpoints of favorites,
// shopping cart entries and subscriptions. The target id is the :id path parameter.
type RelationshipController struct {
	relations    services.RelationshipService
	recipes      services.RecipeService
	users        services.UserService
	presenter    *presenter.Presenter
	previewLimit int
	metrics      *DomainMetrics
}

// NewRelationshipController creates a new RelationshipController
func NewRelationshipController(relations services.RelationshipService, recipes services.RecipeService, users services.UserService,
	p *presenter.Presenter, previewLimit int, metrics *DomainMetrics) *RelationshipController {
	return &RelationshipController{
		relations:    relations,
		recipes:      recipes,
		users:        users,
		presenter:    p,
		previewLimit: previewLimit,
		metrics:      metrics,
	}
}

// notFoundCode is the error code used when the target of kind does not exist
func notFoundCode(kind services.RelationKind) string {
	if kind.Target() == services.TargetUser {
		return models.ErrUserNotFound
	}
	return models.ErrRecipeNotFound
}

// Create returns the handler that adds a relationship of the given kind
//
// @Summary Add a favorite, cart entry or subscription
// @Description Favorite and cart return the short recipe, subscribe returns the author card
// @Tags relationships
// @Produce json
// @Param id path int true "Recipe or user ID"
// @Param recipes_limit query int false "Recipe preview size (subscribe only)"
// @Success 201 {object} presenter.ShortRecipeResponse
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security TokenAuth
// @Router /api/recipes/{id}/favorite [post]
// @Router /api/recipes/{id}/shopping_cart [post]
// @Router /api/users/{id}/subscribe [post]
func (rc *RelationshipController) Create(kind services.RelationKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		targetID, ok := parseID(ctx, "id")
		if !ok {
			return
		}
		actor := middleware.CurrentUserID(ctx)
		limit, ok := recipesLimit(ctx, rc.previewLimit)
		if !ok {
			return
		}

		if err := rc.relations.Add(ctx.Request.Context(), kind, actor, targetID); err != nil {
			respondError(ctx, err, notFoundCode(kind))
			return
		}
		rc.metrics.relationshipChanges.WithLabelValues(string(kind), "add").Inc()

		if kind.Target() == services.TargetUser {
			rc.respondSubscription(ctx, actor, targetID, limit)
			return
		}
		recipe, err := rc.recipes.GetRecipe(ctx.Request.Context(), targetID)
		if err != nil {
			respondError(ctx, err, models.ErrRecipeNotFound)
			return
		}
		ctx.JSON(http.StatusCreated, presenter.ShortRecipe(recipe))
	}
}

// Delete returns the handler that removes a relationship of the given kind
//
// @Summary Remove a favorite, cart entry or subscription
// @Tags relationships
// @Param id path int true "Recipe or user ID"
// @Success 204
// @Failure 401 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security TokenAuth
// @Router /api/recipes/{id}/favorite [delete]
// @Router /api/recipes/{id}/shopping_cart [delete]
// @Router /api/users/{id}/subscribe [delete]
func (rc *RelationshipController) Delete(kind services.RelationKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		targetID, ok := parseID(ctx, "id")
		if !ok {
			return
		}
		if err := rc.relations.Remove(ctx.Request.Context(), kind, middleware.CurrentUserID(ctx), targetID); err != nil {
			respondError(ctx, err, notFoundCode(kind))
			return
		}
		rc.metrics.relationshipChanges.WithLabelValues(string(kind), "remove").Inc()
		ctx.Status(http.StatusNoContent)
	}
}

func (rc *RelationshipController) respondSubscription(ctx *gin.Context, viewer, authorID uint, limit int) {
	author, err := rc.users.GetUserByID(ctx.Request.Context(), authorID)
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	card, err := rc.presenter.Subscription(ctx.Request.Context(), viewer, author, limit)
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	ctx.JSON(http.StatusCreated, card)
}

// recipesLimit reads the recipes_limit query parameter
func recipesLimit(ctx *gin.Context, fallback int) (int, bool) {
	raw := ctx.Query("recipes_limit")
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "recipes_limit must be a positive integer"))
		return 0, false
	}
	return n, true
}

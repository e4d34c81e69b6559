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

// RecipeController handles HTTP requests related to recipes
type RecipeController interface {
	// ListRecipes returns a filtered page of recipes
	ListRecipes(c *gin.Context)
	// GetRecipe returns a single recipe
	GetRecipe(c *gin.Context)
	// CreateRecipe creates a recipe authored by the requester
	CreateRecipe(c *gin.Context)
	// UpdateRecipe partially updates a recipe
	UpdateRecipe(c *gin.Context)
	// DeleteRecipe deletes a recipe
	DeleteRecipe(c *gin.Context)
	// DownloadShoppingCart renders the requester's shopping list as text
	DownloadShoppingCart(c *gin.Context)
}

type recipeController struct {
	recipes    services.RecipeService
	shopping   services.ShoppingListService
	presenter  *presenter.Presenter
	pagination Pagination
	metrics    *DomainMetrics
}

// NewRecipeController creates a new instance of RecipeController
func NewRecipeController(recipes services.RecipeService, shopping services.ShoppingListService, p *presenter.Presenter, pagination Pagination, metrics *DomainMetrics) RecipeController {
	return &recipeController{
		recipes:    recipes,
		shopping:   shopping,
		presenter:  p,
		pagination: pagination,
		metrics:    metrics,
	}
}

// ListRecipes godoc
// @Summary List recipes
// @Description Newest first. Favorite and cart filters apply to authenticated users only.
// @Tags recipes
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param author query int false "Author user ID"
// @Param tags query []string false "Tag slugs, any match" collectionFormat(multi)
// @Param is_favorited query int false "1 to list favorites only"
// @Param is_in_shopping_cart query int false "1 to list cart recipes only"
// @Success 200 {object} PageResponse{results=[]presenter.RecipeResponse}
// @Failure 400 {object} models.APIError
// @Router /api/recipes [get]
func (r *recipeController) ListRecipes(ctx *gin.Context) {
	page, ok := r.pagination.parsePage(ctx)
	if !ok {
		return
	}

	viewer := middleware.CurrentUserID(ctx)
	filter := services.RecipeFilter{TagSlugs: ctx.QueryArray("tags")}
	if raw := ctx.Query("author"); raw != "" {
		author, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "author must be a user id"))
			return
		}
		filter.AuthorID = uint(author)
	}
	if viewer != presenter.Anonymous {
		if queryFlag(ctx, "is_favorited") {
			filter.FavoritedBy = viewer
		}
		if queryFlag(ctx, "is_in_shopping_cart") {
			filter.InShoppingCartOf = viewer
		}
	}

	recipes, total, err := r.recipes.ListRecipes(ctx.Request.Context(), filter, page)
	if err != nil {
		respondError(ctx, err, models.ErrRecipeNotFound)
		return
	}
	ctx.JSON(http.StatusOK, pageResponse(ctx, page, total, r.presenter.Recipes(ctx.Request.Context(), viewer, recipes)))
}

// GetRecipe godoc
// @Summary Get recipe by ID
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} presenter.RecipeResponse
// @Failure 404 {object} models.APIError
// @Router /api/recipes/{id} [get]
func (r *recipeController) GetRecipe(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	recipe, err := r.recipes.GetRecipe(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, models.ErrRecipeNotFound)
		return
	}
	ctx.JSON(http.StatusOK, r.presenter.Recipe(ctx.Request.Context(), middleware.CurrentUserID(ctx), recipe))
}

// CreateRecipe godoc
// @Summary Create a recipe
// @Description The requester becomes the author. Every violation is reported per field.
// @Tags recipes
// @Accept json
// @Produce json
// @Param recipe body services.RecipeInput true "Recipe"
// @Success 201 {object} presenter.RecipeResponse
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Security TokenAuth
// @Router /api/recipes [post]
func (r *recipeController) CreateRecipe(ctx *gin.Context) {
	var input services.RecipeInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindingError(ctx, err)
		return
	}

	actor := actorOf(ctx)
	recipe, err := r.recipes.CreateRecipe(ctx.Request.Context(), actor, input)
	if err != nil {
		respondError(ctx, err, models.ErrRecipeNotFound)
		return
	}
	r.metrics.recipeWrites.WithLabelValues("create").Inc()
	ctx.JSON(http.StatusCreated, r.presenter.Recipe(ctx.Request.Context(), actor.UserID, recipe))
}

// UpdateRecipe godoc
// @Summary Update a recipe
// @Description Partial update. A present ingredients or tags list replaces the stored set.
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path int true "Recipe ID"
// @Param recipe body services.RecipeInput true "Fields to change"
// @Success 200 {object} presenter.RecipeResponse
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security TokenAuth
// @Router /api/recipes/{id} [patch]
func (r *recipeController) UpdateRecipe(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var input services.RecipeInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindingError(ctx, err)
		return
	}

	actor := actorOf(ctx)
	recipe, err := r.recipes.UpdateRecipe(ctx.Request.Context(), id, actor, input)
	if err != nil {
		respondError(ctx, err, models.ErrRecipeNotFound)
		return
	}
	r.metrics.recipeWrites.WithLabelValues("update").Inc()
	ctx.JSON(http.StatusOK, r.presenter.Recipe(ctx.Request.Context(), actor.UserID, recipe))
}

// DeleteRecipe godoc
// @Summary Delete a recipe
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security TokenAuth
// @Router /api/recipes/{id} [delete]
func (r *recipeController) DeleteRecipe(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := r.recipes.DeleteRecipe(ctx.Request.Context(), id, actorOf(ctx)); err != nil {
		respondError(ctx, err, models.ErrRecipeNotFound)
		return
	}
	r.metrics.recipeWrites.WithLabelValues("delete").Inc()
	ctx.Status(http.StatusNoContent)
}

// DownloadShoppingCart godoc
// @Summary Download the shopping list
// @Description Ingredient totals across every recipe in the cart, one "name (unit) - total" line each
// @Tags recipes
// @Produce plain
// @Success 200 {string} string
// @Failure 401 {object} models.APIError
// @Security TokenAuth
// @Router /api/recipes/download_shopping_cart [get]
func (r *recipeController) DownloadShoppingCart(ctx *gin.Context) {
	lines, err := r.shopping.ShoppingList(ctx.Request.Context(), middleware.CurrentUserID(ctx))
	if err != nil {
		respondError(ctx, err, models.ErrNotFound)
		return
	}
	r.metrics.shoppingListDownloads.Inc()
	ctx.Header("Content-Disposition", `attachment; filename="shopping_list.txt"`)
	ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(services.RenderShoppingList(lines)))
}

func actorOf(ctx *gin.Context) services.Actor {
	return services.Actor{UserID: middleware.CurrentUserID(ctx), Admin: middleware.IsAdmin(ctx)}
}

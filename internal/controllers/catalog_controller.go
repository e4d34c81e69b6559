package controllers

import (
	"net/http"
	"strings"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

// CatalogController serves the tag and ingredient reference data. Lists are not paginated.
type CatalogController struct {
	tags        services.TagService
	ingredients services.IngredientService
}

func NewCatalogController(tags services.TagService, ingredients services.IngredientService) *CatalogController {
	return &CatalogController{tags: tags, ingredients: ingredients}
}

// ListTags godoc
// @Summary List tags
// @Tags tags
// @Produce json
// @Success 200 {array} models.Tag
// @Router /api/tags [get]
func (cc *CatalogController) ListTags(ctx *gin.Context) {
	tags, err := cc.tags.ListTags(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, models.ErrNotFound)
		return
	}
	ctx.JSON(http.StatusOK, tags)
}

// GetTag godoc
// @Summary Get tag by ID
// @Tags tags
// @Produce json
// @Param id path int true "Tag ID"
// @Success 200 {object} models.Tag
// @Failure 404 {object} models.APIError
// @Router /api/tags/{id} [get]
func (cc *CatalogController) GetTag(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	tag, err := cc.tags.GetTag(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, models.ErrNotFound)
		return
	}
	ctx.JSON(http.StatusOK, tag)
}

// ListIngredients godoc
// @Summary List ingredients
// @Description Case-insensitive prefix match on the name
// @Tags ingredients
// @Produce json
// @Param search query string false "Name prefix"
// @Param name query string false "Alias of search"
// @Success 200 {array} models.Ingredient
// @Router /api/ingredients [get]
func (cc *CatalogController) ListIngredients(ctx *gin.Context) {
	prefix := ctx.Query("search")
	if strings.TrimSpace(prefix) == "" {
		prefix = ctx.Query("name")
	}
	ingredients, err := cc.ingredients.SearchIngredients(ctx.Request.Context(), prefix)
	if err != nil {
		respondError(ctx, err, models.ErrNotFound)
		return
	}
	ctx.JSON(http.StatusOK, ingredients)
}

// GetIngredient godoc
// @Summary Get ingredient by ID
// @Tags ingredients
// @Produce json
// @Param id path int true "Ingredient ID"
// @Success 200 {object} models.Ingredient
// @Failure 404 {object} models.APIError
// @Router /api/ingredients/{id} [get]
func (cc *CatalogController) GetIngredient(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	ingredient, err := cc.ingredients.GetIngredient(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, models.ErrNotFound)
		return
	}
	ctx.JSON(http.StatusOK, ingredient)
}

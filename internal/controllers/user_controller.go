package controllers

import (
	"net/http"

	"github.com/franciscosanchezn/foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/presenter"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

// RegisterRequest is the sign-up body
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Username  string `json:"username" binding:"required,max=150,username"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
}

// RegisterResponse echoes the created account without its password
type RegisterResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SetPasswordRequest changes the requester's password
type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// UserController handles user accounts and the subscription listing
type UserController struct {
	users        services.UserService
	relations    services.RelationshipService
	presenter    *presenter.Presenter
	pagination   Pagination
	previewLimit int
}

// NewUserController creates a new UserController
func NewUserController(users services.UserService, relations services.RelationshipService, p *presenter.Presenter, pagination Pagination, previewLimit int) *UserController {
	return &UserController{
		users:        users,
		relations:    relations,
		presenter:    p,
		pagination:   pagination,
		previewLimit: previewLimit,
	}
}

// Register godoc
// @Summary Register a new user
// @Tags users
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Account"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} models.APIError
// @Router /api/users [post]
func (uc *UserController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindingError(ctx, err)
		return
	}

	user, err := uc.users.CreateUser(ctx.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}

	log.WithField("user_id", user.ID).Info("User registered")
	ctx.JSON(http.StatusCreated, RegisterResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} PageResponse{results=[]presenter.UserResponse}
// @Router /api/users [get]
func (uc *UserController) ListUsers(ctx *gin.Context) {
	page, ok := uc.pagination.parsePage(ctx)
	if !ok {
		return
	}
	users, total, err := uc.users.ListUsers(ctx.Request.Context(), page)
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	ctx.JSON(http.StatusOK, pageResponse(ctx, page, total, uc.presenter.Users(ctx.Request.Context(), middleware.CurrentUserID(ctx), users)))
}

// GetUser godoc
// @Summary Get user by ID
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} presenter.UserResponse
// @Failure 404 {object} models.APIError
// @Router /api/users/{id} [get]
func (uc *UserController) GetUser(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	uc.respondUser(ctx, id)
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} presenter.UserResponse
// @Failure 401 {object} models.APIError
// @Security TokenAuth
// @Router /api/users/me [get]
func (uc *UserController) Me(ctx *gin.Context) {
	uc.respondUser(ctx, middleware.CurrentUserID(ctx))
}

func (uc *UserController) respondUser(ctx *gin.Context, id uint) {
	user, err := uc.users.GetUserByID(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	ctx.JSON(http.StatusOK, uc.presenter.User(ctx.Request.Context(), middleware.CurrentUserID(ctx), user))
}

// SetPassword godoc
// @Summary Change password
// @Tags users
// @Accept json
// @Param body body SetPasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Security TokenAuth
// @Router /api/users/set_password [post]
func (uc *UserController) SetPassword(ctx *gin.Context) {
	var req SetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindingError(ctx, err)
		return
	}
	if err := uc.users.SetPassword(ctx.Request.Context(), middleware.CurrentUserID(ctx), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Subscriptions godoc
// @Summary Authors the requester follows
// @Description Each author carries a preview of their newest recipes and the total recipe count
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param recipes_limit query int false "Recipe preview size"
// @Success 200 {object} PageResponse{results=[]presenter.SubscriptionResponse}
// @Failure 401 {object} models.APIError
// @Security TokenAuth
// @Router /api/users/subscriptions [get]
func (uc *UserController) Subscriptions(ctx *gin.Context) {
	page, ok := uc.pagination.parsePage(ctx)
	if !ok {
		return
	}
	limit, ok := recipesLimit(ctx, uc.previewLimit)
	if !ok {
		return
	}

	viewer := middleware.CurrentUserID(ctx)
	authorIDs, total, err := uc.relations.TargetIDs(ctx.Request.Context(), services.RelationSubscription, viewer, page)
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	authors, err := uc.users.UsersByIDs(ctx.Request.Context(), authorIDs)
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	cards, err := uc.presenter.Subscriptions(ctx.Request.Context(), viewer, authors, limit)
	if err != nil {
		respondError(ctx, err, models.ErrUserNotFound)
		return
	}
	ctx.JSON(http.StatusOK, pageResponse(ctx, page, total, cards))
}

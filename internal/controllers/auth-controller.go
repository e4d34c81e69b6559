package controllers

import (
	"context"
	"net/http"

	"github.com/franciscosanchezn/foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
)

// TokenIssuer issues and revokes access tokens
type TokenIssuer interface {
	Login(ctx context.Context, email, password string) (oauth2.TokenInfo, error)
	Logout(ctx context.Context, access string) error
}

// LoginRequest is the token login body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	AuthToken string `json:"auth_token"`
}

type AuthController struct {
	tokens TokenIssuer
}

func NewAuthController(tokens TokenIssuer) *AuthController {
	return &AuthController{tokens: tokens}
}

// Login godoc
// @Summary Obtain an auth token
// @Description Send the token back as "Authorization: Token <auth_token>"
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.APIError
// @Failure 429 {object} models.APIError
// @Router /api/auth/token/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	ti, err := ac.tokens.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.WithField("client_ip", c.ClientIP()).Debug("Login rejected")
		respondError(c, err, models.ErrUserNotFound)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{AuthToken: ti.GetAccess()})
}

// Logout godoc
// @Summary Revoke the presented token
// @Tags auth
// @Success 204
// @Failure 401 {object} models.APIError
// @Security TokenAuth
// @Router /api/auth/token/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.tokens.Logout(c.Request.Context(), c.GetString(middleware.ContextAccessToken)); err != nil {
		respondError(c, err, models.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

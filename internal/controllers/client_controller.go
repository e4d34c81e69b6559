package controllers

import (
	"net/http"
	"time"

	"github.com/franciscosanchezn/foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

// CreateClientRequest registers an API client
type CreateClientRequest struct {
	Name   string `json:"name" binding:"required,max=200"`
	Domain string `json:"domain" binding:"omitempty,url"`
}

// ClientResponse describes a registered client. Secret is only set on creation.
type ClientResponse struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Name         string    `json:"name"`
	Domain       string    `json:"domain"`
	CreatedAt    time.Time `json:"created_at"`
}

type ClientController struct {
	clientService services.ClientService
}

func NewClientController(clientService services.ClientService) *ClientController {
	return &ClientController{clientService: clientService}
}

func clientResponse(client *models.OAuthClient, secret string) ClientResponse {
	return ClientResponse{
		ClientID:     client.ID,
		ClientSecret: secret,
		Name:         client.Name,
		Domain:       client.Domain,
		CreatedAt:    client.CreatedAt,
	}
}

// CreateClient godoc
// @Summary Create OAuth2 client
// @Description Register a client for the /oauth/token password grant. The secret is returned once.
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param client body CreateClientRequest true "Client details"
// @Success 201 {object} ClientResponse
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security TokenAuth
// @Router /api/admin/clients [post]
func (cc *ClientController) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	client, secret, err := cc.clientService.CreateClient(c.Request.Context(), middleware.CurrentUserID(c), req.Name, req.Domain)
	if err != nil {
		respondError(c, err, models.ErrNotFound)
		return
	}
	log.WithField("client_id", client.ID).Info("OAuth client registered")
	c.JSON(http.StatusCreated, clientResponse(client, secret))
}

// ListClients godoc
// @Summary List OAuth2 clients
// @Description Clients registered by the authenticated admin
// @Tags OAuth2 Clients
// @Produce json
// @Success 200 {array} ClientResponse
// @Failure 403 {object} models.APIError
// @Security TokenAuth
// @Router /api/admin/clients [get]
func (cc *ClientController) ListClients(c *gin.Context) {
	clients, err := cc.clientService.ListClients(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err, models.ErrNotFound)
		return
	}

	out := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		out = append(out, clientResponse(&clients[i], ""))
	}
	c.JSON(http.StatusOK, out)
}

// DeleteClient godoc
// @Summary Delete OAuth2 client
// @Tags OAuth2 Clients
// @Param id path string true "Client ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security TokenAuth
// @Router /api/admin/clients/{id} [delete]
func (cc *ClientController) DeleteClient(c *gin.Context) {
	if err := cc.clientService.DeleteClient(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		respondError(c, err, models.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

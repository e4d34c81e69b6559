package auth

import (
	"github.com/gin-gonic/gin"
)

// HandleToken serves the OAuth2 token endpoint for the password grant
// @Summary OAuth2 token endpoint
// @Description Exchange an email and password for an access token (RFC 6749 password grant)
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "Must be password"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string true "Client secret"
// @Param username formData string true "User email"
// @Param password formData string true "User password"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /oauth/token [post]
func (o *OAuthService) HandleToken(c *gin.Context) {
	// The oauth2 server writes both success and error responses itself
	if err := o.server.HandleTokenRequest(c.Writer, c.Request); err != nil {
		log.WithError(err).Error("Failed to write token response")
	}
}

package middleware

import (
	"net/http"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
)

// RequireRole checks that the authenticated user has the required role.
// It must run after RequireAuth.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "User not authenticated"))
			return
		}

		userRole := c.GetString(ContextUserRole)
		if userRole == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewAPIError(models.ErrForbidden, "User role not found in token"))
			return
		}

		if userRole != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewAPIError(
				models.ErrForbidden,
				"Insufficient permissions",
				map[string]interface{}{"required_role": requiredRole, "user_role": userRole},
			))
			return
		}

		c.Next()
	}
}

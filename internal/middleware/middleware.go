package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
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

// Context keys set by the authentication middleware
const (
	ContextUserID      = "userID"
	ContextUserRole    = "userRole"
	ContextAccessToken = "accessToken"
	ContextClientID    = "clientID"
)

// Authorization schemes accepted in the Authorization header
var authSchemes = []string{"Token ", "Bearer "}

// TokenVerifier reports whether a signed token is still active (issued and not revoked)
type TokenVerifier interface {
	Verify(ctx context.Context, access string) error
}

// errNoCredentials means the request carried no Authorization header
var errNoCredentials = errors.New("missing Authorization header")

// RequireAuth rejects requests without a valid access token
func RequireAuth(jwtSecret []byte, verifier TokenVerifier) gin.HandlerFunc {
	return tokenAuth(jwtSecret, verifier, true)
}

// OptionalAuth identifies the user when a token is present and lets anonymous requests through.
// A malformed, expired or revoked token is still rejected.
func OptionalAuth(jwtSecret []byte, verifier TokenVerifier) gin.HandlerFunc {
	return tokenAuth(jwtSecret, verifier, false)
}

func tokenAuth(jwtSecret []byte, verifier TokenVerifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c.GetHeader("Authorization"))
		if errors.Is(err, errNoCredentials) && !required {
			c.Next()
			return
		}
		if err != nil {
			respondUnauthorized(c, "authorization_required", err.Error())
			return
		}

		claims, err := parseAndValidateJWT(tokenString, jwtSecret)
		if err != nil {
			respondUnauthorized(c, "invalid_token", err.Error())
			return
		}

		if verifier != nil {
			if err := verifier.Verify(c.Request.Context(), tokenString); err != nil {
				log.WithError(err).WithField("client_ip", c.ClientIP()).Debug("Rejected inactive token")
				respondUnauthorized(c, "invalid_token", "Token is revoked or unknown")
				return
			}
		}

		if err := extractAndSetClaims(c, claims); err != nil {
			respondUnauthorized(c, "invalid_token", err.Error())
			return
		}
		c.Set(ContextAccessToken, tokenString)

		c.Next()
	}
}

// extractToken accepts "Token <t>" and "Bearer <t>"
func extractToken(header string) (string, error) {
	if header == "" {
		return "", errNoCredentials
	}
	for _, scheme := range authSchemes {
		if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			token := strings.TrimSpace(header[len(scheme):])
			if token == "" {
				return "", fmt.Errorf("%stoken is empty", scheme)
			}
			return token, nil
		}
	}
	return "", errors.New("authorization header must use the Token or Bearer scheme")
}

// respondUnauthorized answers 401 with the API error envelope and an RFC 6750 challenge
func respondUnauthorized(c *gin.Context, oauthCode, description string) {
	c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer error=%q`, oauthCode))
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewAPIError(
		models.ErrUnauthorized,
		"Authentication credentials were not provided or are invalid.",
		map[string]interface{}{"error": oauthCode, "error_description": description},
	))
}

// parseJWTToken validates and parses a JWT token using HMAC signing method
func parseJWTToken(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC is accepted, an "alg" swap must not be honoured
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v. Expected HMAC", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims format")
	}
	return claims, nil
}

// parseAndValidateJWT parses the JWT and checks its time claims
func parseAndValidateJWT(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	claims, err := parseJWTToken(tokenString, jwtSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return nil, fmt.Errorf("token has no expiration")
	}
	if exp.Before(now) {
		return nil, fmt.Errorf("token has expired")
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return nil, fmt.Errorf("invalid nbf claim: %w", err)
	}
	if nbf != nil && nbf.After(now) {
		return nil, fmt.Errorf("token not yet valid")
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("invalid iat claim: %w", err)
	}
	if iat != nil && iat.After(now.Add(time.Minute)) {
		return nil, fmt.Errorf("token issued in the future")
	}

	return claims, nil
}

// extractAndSetClaims copies the user id, role and client of the token into the gin context
func extractAndSetClaims(c *gin.Context, claims jwt.MapClaims) error {
	userID, err := extractUserID(claims)
	if err != nil {
		return err
	}
	if userID == 0 {
		return fmt.Errorf("invalid user identifier: cannot be zero")
	}

	role, err := extractRole(claims)
	if err != nil {
		return err
	}

	c.Set(ContextUserID, userID)
	c.Set(ContextUserRole, role)

	if aud, ok := claims["aud"].(string); ok && aud != "" {
		c.Set(ContextClientID, aud)
	} else if audArray, ok := claims["aud"].([]interface{}); ok && len(audArray) > 0 {
		if firstAud, ok := audArray[0].(string); ok && firstAud != "" {
			c.Set(ContextClientID, firstAud)
		}
	}
	return nil
}

// extractUserID reads the "uid" claim, a numeric string or a JSON number
func extractUserID(claims jwt.MapClaims) (uint, error) {
	if uid, ok := claims["uid"].(string); ok && uid != "" {
		parsedID, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid uid claim format: must be a numeric string, got: %s", uid)
		}
		return uint(parsedID), nil
	}

	if uid, ok := claims["uid"].(float64); ok {
		if uid <= 0 {
			return 0, fmt.Errorf("invalid uid claim: must be positive, got: %f", uid)
		}
		return uint(uid), nil
	}

	return 0, fmt.Errorf("token missing required 'uid' claim")
}

func extractRole(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return "", fmt.Errorf("token missing required 'role' claim")
	}

	switch role {
	case models.RoleAdmin, models.RoleUser:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role '%s'. Allowed roles: admin, user", role)
	}
}

// CurrentUserID returns the authenticated user id, or zero for anonymous requests
func CurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// IsAdmin reports whether the authenticated user has the admin role
func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextUserRole) == models.RoleAdmin
}

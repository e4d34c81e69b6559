package models

// APIError represents a standardized error response for the API
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error code constants
const (
	// General errors
	ErrBadRequest       = "BAD_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrTooManyRequests  = "TOO_MANY_REQUESTS"

	// Domain errors
	ErrRecipeNotFound       = "RECIPE_NOT_FOUND"
	ErrUserNotFound         = "USER_NOT_FOUND"
	ErrRelationNotFound     = "RELATION_NOT_FOUND"
	ErrInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrRecipeEditForbidden  = "RECIPE_EDIT_FORBIDDEN"
	ErrTokenGenerationFails = "TOKEN_GENERATION_FAILED"
)

// NewAPIError creates a new API error with the given code and message
func NewAPIError(code, message string, details ...map[string]interface{}) APIError {
	err := APIError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

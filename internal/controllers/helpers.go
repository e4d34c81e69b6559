package controllers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
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

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

var registerOnce sync.Once

// RegisterValidators installs the custom rules on gin's validator and makes
// validation errors report json field names
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		if err := registerUsernameRule(v); err != nil {
			panic(fmt.Sprintf("register username validation: %v", err))
		}
	})
}

func registerUsernameRule(v *validator.Validate) error {
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return usernamePattern.MatchString(value) && !strings.EqualFold(value, "me")
	})
}

// respondError maps service errors onto the API error envelope.
// notFoundCode is used when the requested entity does not exist.
func respondError(ctx *gin.Context, err error, notFoundCode string) {
	var validationErr *services.ValidationError
	var relationErr *services.RelationError

	switch {
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Validation failed", fieldDetails(validationErr.Fields)))
	case errors.As(err, &relationErr) && errors.Is(err, services.ErrRelationNotFound):
		ctx.JSON(http.StatusNotFound, models.NewAPIError(models.ErrRelationNotFound, relationErr.Message))
	case errors.As(err, &relationErr):
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, relationErr.Message,
			fieldDetails(map[string][]string{relationErr.Field: {relationErr.Message}})))
	case errors.Is(err, services.ErrNotFound):
		ctx.JSON(http.StatusNotFound, models.NewAPIError(notFoundCode, "Not found."))
	case errors.Is(err, services.ErrForbidden):
		ctx.JSON(http.StatusForbidden, models.NewAPIError(models.ErrRecipeEditForbidden, "You do not have permission to perform this action."))
	case errors.Is(err, services.ErrInvalidCredentials):
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrInvalidCredentials, "Unable to log in with provided credentials."))
	default:
		log.WithError(err).WithField("path", ctx.FullPath()).Error("Request failed")
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Internal server error"))
	}
}

// respondBindingError reports malformed bodies and struct tag violations per field
func respondBindingError(ctx *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "Invalid request body", map[string]interface{}{"error": err.Error()}))
		return
	}

	fields := make(map[string][]string)
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], ruleMessage(fe))
	}
	ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Validation failed", fieldDetails(fields)))
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. It may contain letters, digits and @/./+/-/_ and must not be \"me\"."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
	}
}

func fieldDetails(fields map[string][]string) map[string]interface{} {
	details := make(map[string]interface{}, len(fields))
	for field, messages := range fields {
		details[field] = messages
	}
	return details
}

// parseID reads a positive numeric path parameter
func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, fmt.Sprintf("Invalid %s format", name)))
		return 0, false
	}
	return uint(id), true
}

// Pagination holds the page size settings of list endpoints
type Pagination struct {
	DefaultSize int
	MaxSize     int
}

// PageResponse is the envelope of paginated lists
type PageResponse struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// parsePage reads the page and limit query parameters
func (p Pagination) parsePage(ctx *gin.Context) (services.Page, bool) {
	page := services.Page{Number: 1, Size: p.DefaultSize}

	if raw := ctx.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ctx.JSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, "Invalid page."))
			return page, false
		}
		page.Number = n
	}
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "limit must be a positive integer"))
			return page, false
		}
		page.Size = n
	}
	if p.MaxSize > 0 && page.Size > p.MaxSize {
		page.Size = p.MaxSize
	}
	// Rows past MaxInt32 are never stored, and larger products overflow the offset
	if page.Size > 0 && page.Number > math.MaxInt32/page.Size {
		ctx.JSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, "Invalid page."))
		return page, false
	}
	return page, true
}

// pageResponse builds the envelope with absolute next and previous links
func pageResponse(ctx *gin.Context, page services.Page, total int64, results interface{}) PageResponse {
	resp := PageResponse{Count: total, Results: results}
	if int64(page.Number*page.Size) < total {
		next := pageURL(ctx, page.Number+1)
		resp.Next = &next
	}
	if page.Number > 1 {
		prev := pageURL(ctx, page.Number-1)
		resp.Previous = &prev
	}
	return resp
}

func pageURL(ctx *gin.Context, number int) string {
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := ctx.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	query := ctx.Request.URL.Query()
	if number <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(number))
	}
	u := url.URL{Scheme: scheme, Host: ctx.Request.Host, Path: ctx.Request.URL.Path, RawQuery: query.Encode()}
	return u.String()
}

// queryFlag reads boolean filters sent as 1/0 or true/false
func queryFlag(ctx *gin.Context, name string) bool {
	v, err := strconv.ParseBool(ctx.Query(name))
	return err == nil && v
}

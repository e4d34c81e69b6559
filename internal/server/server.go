// Package server assembles services, controllers and middleware into the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/franciscosanchezn/foodgram-api/internal/auth"
	"github.com/franciscosanchezn/foodgram-api/internal/config"
	"github.com/franciscosanchezn/foodgram-api/internal/controllers"
	"github.com/franciscosanchezn/foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/presenter"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
}

// SetLogLevel aligns the package logger with the application log level
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

const ingredientCacheSize = 256

// Server is the assembled HTTP API
type Server struct {
	Engine *gin.Engine
	OAuth  *auth.OAuthService

	cfg *config.Config
}

// New wires every component against db. Metrics are registered on reg and served from /metrics.
func New(cfg *config.Config, db *gorm.DB, reg *prometheus.Registry) (*Server, error) {
	controllers.RegisterValidators()

	users := services.NewUserService(db)
	recipes := services.NewRecipeService(db)
	relations := services.NewRelationshipService(db, services.RelationshipOptions{
		AllowSelfSubscription: cfg.AllowSelfSubscription,
	})
	ingredients, err := services.NewIngredientService(db, ingredientCacheSize)
	if err != nil {
		return nil, err
	}

	oauth := auth.NewOAuthService(db, users, auth.Options{
		JWTSecret:    cfg.JWTSecret,
		TokenTTL:     time.Duration(cfg.TokenTTLHours) * time.Hour,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
	})

	p := presenter.New(relations, recipes)
	pagination := controllers.Pagination{DefaultSize: cfg.PageSize, MaxSize: cfg.MaxPageSize}
	domainMetrics := controllers.NewDomainMetrics(reg)

	recipeController := controllers.NewRecipeController(recipes, services.NewShoppingListService(db), p, pagination, domainMetrics)
	relationController := controllers.NewRelationshipController(relations, recipes, users, p, cfg.RecipesPreviewLimit, domainMetrics)
	userController := controllers.NewUserController(users, relations, p, pagination, cfg.RecipesPreviewLimit)
	authController := controllers.NewAuthController(oauth)
	catalogController := controllers.NewCatalogController(services.NewTagService(db), ingredients)
	clientController := controllers.NewClientController(services.NewClientService(db))

	router := gin.New()
	router.Use(
		gin.CustomRecovery(recoverPanic),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.NewHTTPMetrics(reg).Middleware(),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	secret := []byte(cfg.JWTSecret)
	optional := middleware.OptionalAuth(secret, oauth)
	required := middleware.RequireAuth(secret, oauth)
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute)

	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.POST("/oauth/token", loginLimiter.Middleware(), oauth.HandleToken)

	api := router.Group("/api")
	{
		authApi := api.Group("/auth/token")
		authApi.POST("/login", loginLimiter.Middleware(), authController.Login)
		authApi.POST("/logout", required, authController.Logout)

		usersApi := api.Group("/users")
		usersApi.POST("", userController.Register)
		usersApi.GET("", optional, userController.ListUsers)
		usersApi.GET("/me", required, userController.Me)
		usersApi.GET("/subscriptions", required, userController.Subscriptions)
		usersApi.POST("/set_password", required, userController.SetPassword)
		usersApi.GET("/:id", optional, userController.GetUser)
		usersApi.POST("/:id/subscribe", required, relationController.Create(services.RelationSubscription))
		usersApi.DELETE("/:id/subscribe", required, relationController.Delete(services.RelationSubscription))

		recipesApi := api.Group("/recipes")
		recipesApi.GET("", optional, recipeController.ListRecipes)
		recipesApi.POST("", required, recipeController.CreateRecipe)
		recipesApi.GET("/download_shopping_cart", required, recipeController.DownloadShoppingCart)
		recipesApi.GET("/:id", optional, recipeController.GetRecipe)
		recipesApi.PATCH("/:id", required, recipeController.UpdateRecipe)
		recipesApi.DELETE("/:id", required, recipeController.DeleteRecipe)
		recipesApi.POST("/:id/favorite", required, relationController.Create(services.RelationFavorite))
		recipesApi.DELETE("/:id/favorite", required, relationController.Delete(services.RelationFavorite))
		recipesApi.POST("/:id/shopping_cart", required, relationController.Create(services.RelationShoppingCart))
		recipesApi.DELETE("/:id/shopping_cart", required, relationController.Delete(services.RelationShoppingCart))

		api.GET("/tags", catalogController.ListTags)
		api.GET("/tags/:id", catalogController.GetTag)
		api.GET("/ingredients", catalogController.ListIngredients)
		api.GET("/ingredients/:id", catalogController.GetIngredient)

		adminApi := api.Group("/admin", required, middleware.RequireRole(models.RoleAdmin))
		adminApi.POST("/clients", clientController.CreateClient)
		adminApi.GET("/clients", clientController.ListClients)
		adminApi.DELETE("/clients/:id", clientController.DeleteClient)
	}

	return &Server{Engine: router, OAuth: oauth, cfg: cfg}, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// Expired tokens are purged every purgeEvery while running.
func (s *Server) Run(ctx context.Context, purgeEvery time.Duration) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if purgeEvery > 0 {
		go s.purgeLoop(ctx, purgeEvery)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) purgeLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.OAuth.PurgeExpired(ctx)
			if err != nil {
				log.WithError(err).Warn("Expired token purge failed")
				continue
			}
			if removed > 0 {
				log.WithField("removed", removed).Info("Purged expired tokens")
			}
		}
	}
}

func recoverPanic(c *gin.Context, recovered any) {
	log.WithFields(logrus.Fields{
		"request_id": c.GetString(middleware.ContextRequestID),
		"panic":      recovered,
	}).Error("Recovered from panic")
	c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Internal server error"))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service and its database are reachable
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   "foodgram-api",
		})
	}
}

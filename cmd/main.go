package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/franciscosanchezn/foodgram-api/docs" // Register swagger docs
	"github.com/franciscosanchezn/foodgram-api/internal/auth"
	"github.com/franciscosanchezn/foodgram-api/internal/config"
	"github.com/franciscosanchezn/foodgram-api/internal/controllers"
	"github.com/franciscosanchezn/foodgram-api/internal/database"
	"github.com/franciscosanchezn/foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/franciscosanchezn/foodgram-api/internal/presenter"
	"github.com/franciscosanchezn/foodgram-api/internal/server"
	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configuration *config.Config

// @title Foodgram API
// @version 1.0
// @description Recipe sharing: recipes, favorites, shopping lists and subscriptions
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey TokenAuth
// @in header
// @name Authorization
// @description Type "Token" followed by a space and the auth_token from /api/auth/token/login.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "foodgram",
		Short:         "Foodgram recipe sharing API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadDotenvFile()
			conf, err := config.LoadConfig()
			if err != nil {
				return err
			}
			configuration = conf
			setUpLogger(conf.Level())
			return nil
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newCreateAdminCommand(), newPurgeTokensCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var purgeEvery time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := setupDatabase(configuration)
			if err != nil {
				return err
			}
			if err := database.EnsureOAuthClient(db, configuration.OAuthClientID, configuration.OAuthClientSecret, ""); err != nil {
				return fmt.Errorf("register first-party client: %w", err)
			}

			if configuration.Environment == "production" {
				gin.SetMode(gin.ReleaseMode)
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			srv, err := server.New(configuration, db, reg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, purgeEvery)
		},
	}
	cmd.Flags().DurationVar(&purgeEvery, "purge-every", time.Hour, "interval between expired token purges, 0 disables")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := setupDatabase(configuration)
			return err
		},
	}
}

func newCreateAdminCommand() *cobra.Command {
	var input services.RegisterInput
	cmd := &cobra.Command{
		Use:   "createadmin",
		Short: "Create a user with the admin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := setupDatabase(configuration)
			if err != nil {
				return err
			}
			input.Role = models.RoleAdmin
			user, err := services.NewUserService(db).CreateUser(cmd.Context(), input)
			if err != nil {
				var verr *services.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("cannot create admin: %w", verr)
				}
				return err
			}
			log.WithFields(log.Fields{"user_id": user.ID, "email": user.Email}).Info("Admin created")
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&input.Username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&input.Password, "password", "", "admin password")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "User", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newPurgeTokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purgetokens",
		Short: "Delete expired access tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := setupDatabase(configuration)
			if err != nil {
				return err
			}
			removed, err := auth.NewGormTokenStore(db).PurgeExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			log.WithField("removed", removed).Info("Expired tokens purged")
			return nil
		},
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger applies the configured level to every package logger
func setUpLogger(level log.Level) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(level)
	database.SetLogLevel(level)
	auth.SetLogLevel(level)
	middleware.SetLogLevel(level)
	presenter.SetLogLevel(level)
	controllers.SetLogLevel(level)
	server.SetLogLevel(level)
}

// setupDatabase connects, migrates and optionally seeds reference data
func setupDatabase(conf *config.Config) (*gorm.DB, error) {
	db, err := database.InitDatabase(database.NewDatabaseConfig(conf))
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if conf.SeedData {
		if err := database.SeedReferenceData(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

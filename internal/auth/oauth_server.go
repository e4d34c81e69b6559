package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/franciscosanchezn/foodgram-api/internal/services"
	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/server"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
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

// ErrTokenRevoked is returned for well-formed tokens that are unknown or logged out
var ErrTokenRevoked = errors.New("token is revoked or unknown")

// Options configures token issuance
type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	// ClientID and ClientSecret identify the first-party client used for email/password logins
	ClientID     string
	ClientSecret string
}

// OAuthService issues, verifies and revokes access tokens
type OAuthService struct {
	server  *server.Server
	manager *manage.Manager
	tokens  *GormTokenStore
	users   services.UserService
	opts    Options
}

func NewOAuthService(db *gorm.DB, users services.UserService, opts Options) *OAuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}

	manager := manage.NewDefaultManager()
	manager.SetPasswordTokenCfg(&manage.Config{
		AccessTokenExp:    opts.TokenTTL,
		IsGenerateRefresh: false,
	})

	// JWT access tokens carry the user id and role
	manager.MapAccessGenerate(NewCustomJWTAccessGenerate([]byte(opts.JWTSecret), jwt.SigningMethodHS512, db))

	tokens := NewGormTokenStore(db)
	manager.MustTokenStorage(tokens, nil)
	manager.MapClientStorage(NewGormClientStore(db))

	o := &OAuthService{
		manager: manager,
		tokens:  tokens,
		users:   users,
		opts:    opts,
	}

	srv := server.NewDefaultServer(manager)
	srv.SetAllowedGrantType(oauth2.PasswordCredentials)
	srv.SetClientInfoHandler(server.ClientFormHandler)
	srv.SetPasswordAuthorizationHandler(o.passwordAuthorization)
	srv.SetInternalErrorHandler(func(err error) *oautherrors.Response {
		log.WithError(err).Error("OAuth2 internal error")
		return nil
	})
	o.server = srv

	return o
}

func (o *OAuthService) GetServer() *server.Server {
	return o.server
}

// passwordAuthorization resolves the username (an email address) of a password grant.
// An empty user id makes the server answer invalid_grant.
func (o *OAuthService) passwordAuthorization(ctx context.Context, clientID, username, password string) (string, error) {
	user, err := o.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.WithField("client_id", clientID).Debug("Rejected password grant")
			return "", nil
		}
		return "", err
	}
	return strconv.FormatUint(uint64(user.ID), 10), nil
}

// Login exchanges email and password for an access token issued to the first-party client
func (o *OAuthService) Login(ctx context.Context, email, password string) (oauth2.TokenInfo, error) {
	user, err := o.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	ti, err := o.manager.GenerateAccessToken(ctx, oauth2.PasswordCredentials, &oauth2.TokenGenerateRequest{
		ClientID:     o.opts.ClientID,
		ClientSecret: o.opts.ClientSecret,
		UserID:       strconv.FormatUint(uint64(user.ID), 10),
	})
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	log.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"client_id": o.opts.ClientID,
	}).Info("Issued access token")
	return ti, nil
}

// Logout revokes the access token
func (o *OAuthService) Logout(ctx context.Context, access string) error {
	return o.manager.RemoveAccessToken(ctx, access)
}

// Verify checks that the access token was issued by this service and is neither expired nor revoked
func (o *OAuthService) Verify(ctx context.Context, access string) error {
	_, err := o.manager.LoadAccessToken(ctx, access)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, oautherrors.ErrInvalidAccessToken), errors.Is(err, oautherrors.ErrExpiredAccessToken):
		return ErrTokenRevoked
	default:
		return err
	}
}

// PurgeExpired removes expired tokens from the store
func (o *OAuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return o.tokens.PurgeExpired(ctx, time.Now())
}

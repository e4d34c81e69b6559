package auth

import (
	"context"
	"errors"
	"time"

	internalmodels "github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/models"
	"gorm.io/gorm"
)

// ErrCodeGrantUnsupported is returned by the authorization code methods of the token store
var ErrCodeGrantUnsupported = errors.New("authorization code grant is not supported")

type GormClientStore struct {
	db *gorm.DB
}

func NewGormClientStore(db *gorm.DB) *GormClientStore {
	return &GormClientStore{db: db}
}

// GetByID returns the client, which verifies secrets against its bcrypt hash
func (s *GormClientStore) GetByID(ctx context.Context, id string) (oauth2.ClientInfo, error) {
	var client internalmodels.OAuthClient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// GormTokenStore persists issued tokens. Lookups of unknown tokens return a nil
// TokenInfo, which the oauth2 manager reports as an invalid token.
type GormTokenStore struct {
	db *gorm.DB
}

func NewGormTokenStore(db *gorm.DB) *GormTokenStore {
	return &GormTokenStore{db: db}
}

func (s *GormTokenStore) Create(ctx context.Context, info oauth2.TokenInfo) error {
	createdAt := info.GetAccessCreateAt()
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	token := &internalmodels.OAuthToken{
		ClientID:    info.GetClientID(),
		AccessToken: info.GetAccess(),
		Scopes:      info.GetScope(),
		ExpiresAt:   createdAt.Add(info.GetAccessExpiresIn()),
		CreatedAt:   createdAt,
	}
	if userID := info.GetUserID(); userID != "" {
		token.UserID = &userID
	}
	if refresh := info.GetRefresh(); refresh != "" {
		token.RefreshToken = &refresh
	}

	return s.db.WithContext(ctx).Create(token).Error
}

func (s *GormTokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return s.db.WithContext(ctx).Where("access_token = ?", access).Delete(&internalmodels.OAuthToken{}).Error
}

func (s *GormTokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	return s.db.WithContext(ctx).Where("refresh_token = ?", refresh).Delete(&internalmodels.OAuthToken{}).Error
}

func (s *GormTokenStore) GetByAccess(ctx context.Context, access string) (oauth2.TokenInfo, error) {
	return s.find(ctx, "access_token = ?", access)
}

func (s *GormTokenStore) GetByRefresh(ctx context.Context, refresh string) (oauth2.TokenInfo, error) {
	return s.find(ctx, "refresh_token = ?", refresh)
}

func (s *GormTokenStore) GetByCode(ctx context.Context, code string) (oauth2.TokenInfo, error) {
	return nil, ErrCodeGrantUnsupported
}

func (s *GormTokenStore) RemoveByCode(ctx context.Context, code string) error {
	return ErrCodeGrantUnsupported
}

func (s *GormTokenStore) CreateCode(ctx context.Context, info oauth2.TokenInfo) error {
	return ErrCodeGrantUnsupported
}

// RevokeUser deletes every token issued to the user
func (s *GormTokenStore) RevokeUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&internalmodels.OAuthToken{}).Error
}

// PurgeExpired deletes tokens that expired before now and returns how many were removed
func (s *GormTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&internalmodels.OAuthToken{})
	return result.RowsAffected, result.Error
}

func (s *GormTokenStore) find(ctx context.Context, query string, value string) (oauth2.TokenInfo, error) {
	var token internalmodels.OAuthToken
	if err := s.db.WithContext(ctx).Where(query, value).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	info := &models.Token{
		ClientID:        token.ClientID,
		Access:          token.AccessToken,
		AccessCreateAt:  token.CreatedAt,
		AccessExpiresIn: token.ExpiresAt.Sub(token.CreatedAt),
		Scope:           token.Scopes,
	}
	if token.UserID != nil {
		info.UserID = *token.UserID
	}
	if token.RefreshToken != nil {
		info.Refresh = *token.RefreshToken
	}
	return info, nil
}

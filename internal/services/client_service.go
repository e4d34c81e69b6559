package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ClientService manages the API clients allowed to use the password grant
type ClientService interface {
	// CreateClient registers a client and returns the plain secret, which is not stored
	CreateClient(ctx context.Context, ownerID uint, name, domain string) (*models.OAuthClient, string, error)
	ListClients(ctx context.Context, ownerID uint) ([]models.OAuthClient, error)
	DeleteClient(ctx context.Context, clientID string, ownerID uint) error
}

type clientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) ClientService {
	return &clientService{db: db}
}

func (s *clientService) CreateClient(ctx context.Context, ownerID uint, name, domain string) (*models.OAuthClient, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", NewValidationError("name", msgRequired)
	}

	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash client secret: %w", err)
	}

	client := &models.OAuthClient{
		ID:     uuid.NewString(),
		Secret: string(hash),
		Name:   name,
		Domain: domain,
		UserID: ownerID,
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, "", err
	}
	return client, secret, nil
}

func (s *clientService) ListClients(ctx context.Context, ownerID uint) ([]models.OAuthClient, error) {
	var clients []models.OAuthClient
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *clientService) DeleteClient(ctx context.Context, clientID string, ownerID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", clientID, ownerID).Delete(&models.OAuthClient{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	return nil
}

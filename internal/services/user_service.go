package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"gorm.io/gorm"
)

// RegisterInput holds the fields of a sign-up request
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
	Role      string
}

type UserService interface {
	CreateUser(ctx context.Context, input RegisterInput) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	// UsersByIDs loads users keeping the order of ids; unknown ids are skipped
	UsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	ListUsers(ctx context.Context, page Page) ([]models.User, int64, error)
	// Authenticate returns the user whose email and password match
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	SetPassword(ctx context.Context, id uint, current, next string) error
}

type userService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

func (s *userService) CreateUser(ctx context.Context, input RegisterInput) (*models.User, error) {
	user := models.User{
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Username:  strings.TrimSpace(input.Username),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Password:  input.Password,
		Role:      input.Role,
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v := &ValidationError{}
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			v.Add("email", "A user with this email already exists.")
		}
		if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			v.Add("username", "A user with this username already exists.")
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		if err := user.HashPassword(); err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return NewValidationError("email", "A user with this email or username already exists.")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

func (s *userService) UsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var found []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", uniqueIDs(ids)).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *userService) ListUsers(ctx context.Context, page Page) ([]models.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Order("id")
	if !page.Unbounded() {
		q = q.Offset(page.Offset()).Limit(page.Size)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) SetPassword(ctx context.Context, id uint, current, next string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.CheckPassword(current) {
		return NewValidationError("current_password", "Invalid password.")
	}
	user.Password = next
	if err := user.HashPassword(); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(user).Update("password", user.Password).Error
}

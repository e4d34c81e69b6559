package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;size:254;not null"`
	Username  string `gorm:"uniqueIndex;size:150;not null"`
	FirstName string `gorm:"size:150;not null"`
	LastName  string `gorm:"size:150;not null"`
	Password  string `gorm:"not null" json:"-"`
	Role      string `gorm:"size:10;default:'user'"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Recipes []Recipe `gorm:"foreignKey:AuthorID"`
}

// HashPassword replaces the plain text password with its bcrypt hash
func (u *User) HashPassword() error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword reports whether the plain text password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

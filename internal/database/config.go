package database

import (
	"fmt"
	"strings"

	"github.com/franciscosanchezn/foodgram-api/internal/config"
)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// Driver specifies the database driver (postgres, sqlite)
	Driver string

	// PostgreSQL-specific configuration
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// SQLite-specific configuration
	Path string

	// MaxRetries bounds connection attempts, zero means the default of 5
	MaxRetries int
}

// NewDatabaseConfig extracts the database settings from the application configuration
func NewDatabaseConfig(c *config.Config) DatabaseConfig {
	return DatabaseConfig{
		Driver:   c.DBDriver,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
		Path:     c.DBPath,
	}
}

// String returns a string representation with sensitive data masked
func (c *DatabaseConfig) String() string {
	return fmt.Sprintf("DatabaseConfig{Driver: %s, Host: %s, Port: %s, User: %s, Password: [REDACTED], Name: %s, SSLMode: %s, Path: %s}",
		c.Driver, c.Host, c.Port, c.User, c.Name, c.SSLMode, c.Path)
}

// DSN builds a Data Source Name string based on the driver
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres", "postgresql":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
	case "sqlite", "":
		// Cascading deletes of recipe links rely on foreign keys, which sqlite disables by default
		if c.Path == "" || strings.Contains(c.Path, "_foreign_keys") {
			return c.Path
		}
		sep := "?"
		if strings.Contains(c.Path, "?") {
			sep = "&"
		}
		return c.Path + sep + "_foreign_keys=on"
	default:
		return ""
	}
}

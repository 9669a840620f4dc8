package erp

import (
	"errors"
	"net/url"
)

// OdooConfig holds connection settings for an Odoo server
type OdooConfig struct {
	// URL is the base URL of the Odoo server (e.g. "https://erp.example.com")
	URL string
	// Database is the Odoo database name
	Database string
	// Username is the Odoo login
	Username string
	// Password is the Odoo password or API key
	Password string
	// TimeoutSeconds is the per-request HTTP timeout, independent of retries
	TimeoutSeconds int
	// PageSize is how many records one search page fetches
	PageSize int
	// MaxRetries is how many times a transport failure is retried
	MaxRetries int
	// RetryBaseDelayMillis is the first backoff delay; doubles per attempt
	RetryBaseDelayMillis int
}

// Errors for Odoo configuration
var (
	ErrOdooConfigMissingURL      = errors.New("odoo: server URL is required")
	ErrOdooConfigInvalidURL      = errors.New("odoo: server URL is invalid")
	ErrOdooConfigMissingDatabase = errors.New("odoo: database is required")
	ErrOdooConfigMissingUser     = errors.New("odoo: username is required")
	ErrOdooConfigMissingPassword = errors.New("odoo: password is required")
)

// NewOdooConfig creates an Odoo configuration with defaults
func NewOdooConfig(rawURL, database, username, password string) *OdooConfig {
	return &OdooConfig{
		URL:                  rawURL,
		Database:             database,
		Username:             username,
		Password:             password,
		TimeoutSeconds:       30,
		PageSize:             100,
		MaxRetries:           3,
		RetryBaseDelayMillis: 500,
	}
}

// Validate validates the Odoo configuration
func (c *OdooConfig) Validate() error {
	if c.URL == "" {
		return ErrOdooConfigMissingURL
	}
	if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return ErrOdooConfigInvalidURL
	}
	if c.Database == "" {
		return ErrOdooConfigMissingDatabase
	}
	if c.Username == "" {
		return ErrOdooConfigMissingUser
	}
	if c.Password == "" {
		return ErrOdooConfigMissingPassword
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelayMillis <= 0 {
		c.RetryBaseDelayMillis = 500
	}
	return nil
}

// Package sheets projects contract records into Google Sheets workbooks.
package sheets

import (
	"fmt"
	"os"
	"time"
)

// Config holds the configuration for the spreadsheet projection.
type Config struct {
	ClientID              string
	ClientSecret          string
	RefreshToken          string
	ServiceAccountPath    string
	TokenFile             string
	RegistrySpreadsheetID string
	TitlePrefix           string
	TimeZone              string
	RetryAttempts         int
	RetryDelay            time.Duration
	Tolerance             float64
	EnableFormatting      bool
	// DryRun lays sheets out in memory instead of calling the API.
	DryRun bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		TitlePrefix:      "Контракт",
		TimeZone:         "Europe/Moscow",
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		Tolerance:        0.01,
	}
}

// LoadFromEnv loads credentials and workbook settings from environment variables.
func (c *Config) LoadFromEnv() error {
	c.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	c.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	c.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	c.ServiceAccountPath = os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")

	if id := os.Getenv("GOOGLE_SHEETS_REGISTRY_ID"); id != "" {
		c.RegistrySpreadsheetID = id
	}

	if c.ServiceAccountPath == "" && (c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "") {
		return fmt.Errorf("missing Google Sheets authentication: provide either service account path or OAuth2 credentials")
	}

	return nil
}

// HasCredentials reports whether any authentication method is configured.
func (c *Config) HasCredentials() bool {
	return c.ServiceAccountPath != "" || (c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "")
}

// Validate checks if the configuration is valid for the Google backend.
func (c *Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}

	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}

	return c.validateCommon()
}

func (c *Config) validateCommon() error {
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	if c.Tolerance < 0 {
		return fmt.Errorf("sum tolerance cannot be negative")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}

	return nil
}

// Location returns the configured time zone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

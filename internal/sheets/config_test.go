package sheets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				RefreshToken:  "test-token",
				RetryAttempts: 3,
				RetryDelay:    time.Second,
				TimeZone:      "UTC",
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				RetryAttempts:      3,
				RetryDelay:         time.Second,
				TimeZone:           "Europe/Moscow",
			},
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:     "test-client",
				RefreshToken: "test-token",
				TimeZone:     "UTC",
			},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				TimeZone:           "UTC",
			},
			wantErr: true,
			errMsg:  "multiple authentication methods",
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				RetryAttempts:      3,
				RetryDelay:         -1 * time.Second,
				TimeZone:           "UTC",
			},
			wantErr: true,
			errMsg:  "retry delay cannot be negative",
		},
		{
			name: "negative tolerance",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				Tolerance:          -0.5,
				TimeZone:           "UTC",
			},
			wantErr: true,
			errMsg:  "sum tolerance cannot be negative",
		},
		{
			name: "unknown time zone",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				TimeZone:           "Mars/Olympus",
			},
			wantErr: true,
			errMsg:  "invalid time zone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/keys/sa.json")
	t.Setenv("GOOGLE_SHEETS_REGISTRY_ID", "registry-book")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
	assert.Equal(t, "registry-book", cfg.RegistrySpreadsheetID)
	assert.True(t, cfg.HasCredentials())

	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	cfg = DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
	assert.False(t, cfg.HasCredentials())
}

func TestConfig_Location(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())

	cfg.TimeZone = "Not/AZone"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestConfig_ApplyTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens", "sheets.json")

	cfg := Config{TokenFile: path}
	require.NoError(t, cfg.ApplyTokenFile(), "missing file is not an error")
	assert.Empty(t, cfg.RefreshToken)

	require.NoError(t, SaveToken(path, &oauth2.Token{RefreshToken: "refresh-1", TokenType: "Bearer"}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, cfg.ApplyTokenFile())
	assert.Equal(t, "refresh-1", cfg.RefreshToken)

	cfg.RefreshToken = "explicit"
	require.NoError(t, cfg.ApplyTokenFile())
	assert.Equal(t, "explicit", cfg.RefreshToken)
}

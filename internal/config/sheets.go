package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/contract-sentinel/internal/sheets"
)

// LoadSheetsConfig builds the spreadsheet configuration. Precedence:
//  1. sheets.* keys (config file or SENTINEL_SHEETS_* variables)
//  2. GOOGLE_SHEETS_* variables
//  3. defaults
//
// A refresh token saved by `sentinel auth` is picked up from the token file.
// The result is not validated; callers decide whether sheets are required.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()
	config.TokenFile = ExpandPath("$HOME/.config/sentinel/sheets-token.json")

	if s := v.GetString("sheets.service_account_path"); s != "" {
		config.ServiceAccountPath = ExpandPath(s)
	}
	if s := v.GetString("sheets.client_id"); s != "" {
		config.ClientID = s
	}
	if s := v.GetString("sheets.client_secret"); s != "" {
		config.ClientSecret = s
	}
	if s := v.GetString("sheets.refresh_token"); s != "" {
		config.RefreshToken = s
	}
	if s := v.GetString("sheets.token_file"); s != "" {
		config.TokenFile = ExpandPath(s)
	}
	if s := v.GetString("sheets.registry_id"); s != "" {
		config.RegistrySpreadsheetID = s
	}
	if s := v.GetString("sheets.title_prefix"); s != "" {
		config.TitlePrefix = s
	}
	if s := v.GetString("sheets.timezone"); s != "" {
		config.TimeZone = s
	}
	if v.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = v.GetInt("sheets.retry_attempts")
	}
	if v.IsSet("sheets.retry_delay") {
		config.RetryDelay = v.GetDuration("sheets.retry_delay")
	}
	if v.IsSet("sheets.tolerance") {
		config.Tolerance = v.GetFloat64("sheets.tolerance")
	}
	config.DryRun = v.GetBool("sheets.dry_run")
	if v.IsSet("sheets.formatting") {
		config.EnableFormatting = v.GetBool("sheets.formatting")
	}

	if config.ServiceAccountPath == "" {
		if s := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); s != "" {
			config.ServiceAccountPath = ExpandPath(s)
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if config.RegistrySpreadsheetID == "" {
		config.RegistrySpreadsheetID = os.Getenv("GOOGLE_SHEETS_REGISTRY_ID")
	}

	if config.ServiceAccountPath == "" && config.ClientID != "" {
		if err := config.ApplyTokenFile(); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

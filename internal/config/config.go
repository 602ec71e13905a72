package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/contract-sentinel/internal/api"
	"github.com/Veraticus/contract-sentinel/internal/archive"
	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/fetch"
	"github.com/Veraticus/contract-sentinel/internal/notify"
)

// EnvPrefix prefixes every environment override, e.g. SENTINEL_DATABASE_PATH.
const EnvPrefix = "SENTINEL"

// Fetch modes.
const (
	FetchModeCommand = "command"
	FetchModeFile    = "file"
)

// Archive backends.
const (
	ArchiveNone  = "none"
	ArchiveDir   = "dir"
	ArchiveMinio = "minio"
)

// Config is the complete runtime configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Watch    WatchConfig    `mapstructure:"watch"`
	API      api.Config     `mapstructure:"api"`
}

// DatabaseConfig locates the registry database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls the process logger and the fetch audit log.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AuditPath string `mapstructure:"audit_path"`
}

// FetchConfig selects and tunes the collaborator transport.
type FetchConfig struct {
	Mode           string        `mapstructure:"mode"`
	Command        string        `mapstructure:"command"`
	PreviewCommand string        `mapstructure:"preview_command"`
	DumpDir        string        `mapstructure:"dump_dir"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
}

// Options converts the retry settings for fetch.New.
func (f FetchConfig) Options() fetch.Options {
	return fetch.Options{
		MaxRetries:  f.MaxRetries,
		Timeout:     f.Timeout,
		BackoffBase: f.BackoffBase,
	}
}

// NotifyConfig configures chat delivery. Without a token messages are logged.
type NotifyConfig struct {
	TelegramToken string `mapstructure:"telegram_token"`
	TelegramAPI   string `mapstructure:"telegram_api"`
	ChatID        string `mapstructure:"chat_id"`
	// FeedChatID receives feed events; ChatID is used when empty.
	FeedChatID string `mapstructure:"feed_chat_id"`
}

// FeedDestination returns the chat for feed events.
func (n NotifyConfig) FeedDestination() string {
	if n.FeedChatID != "" {
		return n.FeedChatID
	}
	return n.ChatID
}

// ArchiveConfig selects where raw payloads are kept.
type ArchiveConfig struct {
	Backend string              `mapstructure:"backend"`
	Dir     string              `mapstructure:"dir"`
	Minio   archive.MinioConfig `mapstructure:"minio"`
}

// FeedConfig tunes the RSS poller.
type FeedConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TriggerCheck bool          `mapstructure:"trigger_check"`
}

// WatchConfig tunes the dump directory watcher.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	dataDir := DataDir()
	apiDefaults := api.DefaultConfig()
	fetchDefaults := fetch.DefaultOptions()

	v.SetDefault("database.path", filepath.Join(dataDir, "sentinel.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.audit_path", filepath.Join(dataDir, "fetch-audit.log"))
	v.SetDefault("fetch.mode", FetchModeCommand)
	v.SetDefault("fetch.command", "zakupki-scraper --json")
	v.SetDefault("fetch.preview_command", "zakupki-scraper --preview --json")
	v.SetDefault("fetch.timeout", fetchDefaults.Timeout)
	v.SetDefault("fetch.max_retries", fetchDefaults.MaxRetries)
	v.SetDefault("fetch.backoff_base", fetchDefaults.BackoffBase)
	v.SetDefault("fetch.dump_dir", "")
	v.SetDefault("notify.telegram_api", notify.DefaultTelegramAPI)
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.chat_id", "")
	v.SetDefault("notify.feed_chat_id", "")
	v.SetDefault("archive.minio.endpoint", "")
	v.SetDefault("archive.minio.access_key", "")
	v.SetDefault("archive.minio.secret_key", "")
	v.SetDefault("archive.minio.bucket", "contract-payloads")
	v.SetDefault("archive.minio.use_ssl", true)
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.dir", filepath.Join(dataDir, "archive"))
	v.SetDefault("feed.interval", 10*time.Minute)
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.trigger_check", true)
	v.SetDefault("watch.debounce", 500*time.Millisecond)
	v.SetDefault("api.addr", apiDefaults.Addr)
	v.SetDefault("api.shutdown_timeout", apiDefaults.ShutdownTimeout)
	v.SetDefault("api.session_ttl", apiDefaults.SessionTTL)
}

// Prepare wires defaults, .env loading and environment overrides into v and
// reads the config file. cfgFile may be empty to search the default locations.
func Prepare(v *viper.Viper, cfgFile string) error {
	// A missing .env is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// Load unmarshals v into a Config and expands its paths.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Logging.AuditPath = ExpandPath(cfg.Logging.AuditPath)
	cfg.Fetch.DumpDir = ExpandPath(cfg.Fetch.DumpDir)
	cfg.Archive.Dir = ExpandPath(cfg.Archive.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would fail later in a less obvious way.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Fetch.Mode {
	case FetchModeCommand:
		if strings.TrimSpace(c.Fetch.Command) == "" {
			return fmt.Errorf("%w: fetch.command", common.ErrMissingConfig)
		}
	case FetchModeFile:
		if c.Fetch.DumpDir == "" {
			return fmt.Errorf("%w: fetch.dump_dir", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("unknown fetch mode %q", c.Fetch.Mode)
	}
	if c.Fetch.MaxRetries < 0 {
		return errors.New("fetch.max_retries cannot be negative")
	}

	switch c.Archive.Backend {
	case ArchiveNone, "":
	case ArchiveDir:
		if c.Archive.Dir == "" {
			return fmt.Errorf("%w: archive.dir", common.ErrMissingConfig)
		}
	case ArchiveMinio:
		if err := c.Archive.Minio.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}

	if c.Notify.TelegramToken != "" && c.Notify.ChatID == "" && c.Notify.FeedChatID == "" {
		return fmt.Errorf("%w: notify.chat_id", common.ErrMissingConfig)
	}
	if c.Feed.Interval < time.Second {
		return errors.New("feed.interval must be at least one second")
	}
	return nil
}

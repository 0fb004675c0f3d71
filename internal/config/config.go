package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/dialin/internal/common"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/sheets"
	"github.com/Veraticus/dialin/internal/storage"
)

// Remote backend names for storage.remote.
const (
	RemoteNone  = "none"
	RemoteRedis = "redis"
	RemoteGCS   = "gcs"
)

// Config is the typed view of all configuration keys.
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Storage StorageConfig
	Logging LoggingConfig
	LLM     llm.Config
	Sheets  sheets.Config
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// AuthConfig configures bearer-token authentication. An empty secret puts
// the server in guest mode.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// StorageConfig selects the local fallback database and the remote backend.
type StorageConfig struct {
	LocalPath string
	Remote    string
	Redis     storage.RedisOptions
	GCS       storage.GCSOptions
}

// LoggingConfig configures the global slog logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.token_ttl", "720h")

	v.SetDefault("storage.local_path", "$HOME/.local/share/dialin/dialin.db")
	v.SetDefault("storage.remote", RemoteNone)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.gcs.prefix", "espressoSettings")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("llm.provider", llm.ProviderGemini)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.cache_ttl", "15m")
	v.SetDefault("llm.rate_limit", 30)
	v.SetDefault("llm.timeout", "60s")

	defaults := sheets.DefaultConfig()
	v.SetDefault("sheets.spreadsheet_name", defaults.SpreadsheetName)
	v.SetDefault("sheets.sheet_title", defaults.SheetTitle)
	v.SetDefault("sheets.time_zone", defaults.TimeZone)
	v.SetDefault("sheets.token_file", "$HOME/.config/dialin/sheets-token.json")
}

// BindEnv makes every key readable from DIALIN_ environment variables, with
// dots replaced by underscores (storage.redis.addr -> DIALIN_STORAGE_REDIS_ADDR).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("DIALIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Storage: StorageConfig{
			LocalPath: ExpandPath(v.GetString("storage.local_path")),
			Remote:    strings.ToLower(strings.TrimSpace(v.GetString("storage.remote"))),
			Redis: storage.RedisOptions{
				Addr:     v.GetString("storage.redis.addr"),
				Password: v.GetString("storage.redis.password"),
				DB:       v.GetInt("storage.redis.db"),
			},
			GCS: storage.GCSOptions{
				Bucket:       v.GetString("storage.gcs.bucket"),
				Prefix:       v.GetString("storage.gcs.prefix"),
				EmulatorHost: v.GetString("storage.gcs.emulator_host"),
			},
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		LLM: llm.Config{
			Provider:    v.GetString("llm.provider"),
			APIKey:      v.GetString("llm.api_key"),
			Model:       v.GetString("llm.model"),
			BaseURL:     v.GetString("llm.base_url"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			CacheTTL:    v.GetDuration("llm.cache_ttl"),
			Timeout:     v.GetDuration("llm.timeout"),
			RateLimit:   v.GetInt("llm.rate_limit"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
		},
		Sheets: loadSheets(v),
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKeyFromEnv(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Remote {
	case "", RemoteNone:
		c.Storage.Remote = RemoteNone
	case RemoteRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("%w: storage.redis.addr is required for the redis backend", common.ErrMissingConfig)
		}
	case RemoteGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("%w: storage.gcs.bucket is required for the gcs backend", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.remote %q", common.ErrInvalidConfig, c.Storage.Remote)
	}

	if c.Storage.LocalPath == "" {
		return fmt.Errorf("%w: storage.local_path", common.ErrMissingConfig)
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("%w: auth.jwt_secret must be at least 16 bytes", common.ErrInvalidConfig)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", common.ErrInvalidConfig)
	}
	return nil
}

// AIEnabled reports whether an LLM key is configured.
func (c *Config) AIEnabled() bool {
	return c.LLM.APIKey != ""
}

// GuestMode reports whether the server runs without authentication.
func (c *Config) GuestMode() bool {
	return c.Auth.JWTSecret == ""
}

// loadSheets reads sheets.* keys, falling back to the GOOGLE_SHEETS_*
// environment variables.
func loadSheets(v *viper.Viper) sheets.Config {
	cfg := sheets.DefaultConfig()

	cfg.ServiceAccountPath = ExpandPath(firstNonEmpty(v.GetString("sheets.service_account_path"), os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")))
	cfg.ClientID = firstNonEmpty(v.GetString("sheets.client_id"), os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	cfg.ClientSecret = firstNonEmpty(v.GetString("sheets.client_secret"), os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	cfg.RefreshToken = firstNonEmpty(v.GetString("sheets.refresh_token"), os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN"))
	cfg.SpreadsheetID = firstNonEmpty(v.GetString("sheets.spreadsheet_id"), os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	cfg.SpreadsheetName = firstNonEmpty(v.GetString("sheets.spreadsheet_name"), cfg.SpreadsheetName)
	cfg.SheetTitle = firstNonEmpty(v.GetString("sheets.sheet_title"), cfg.SheetTitle)
	cfg.TimeZone = firstNonEmpty(v.GetString("sheets.time_zone"), cfg.TimeZone)
	cfg.TokenFile = ExpandPath(v.GetString("sheets.token_file"))

	return cfg
}

func providerKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

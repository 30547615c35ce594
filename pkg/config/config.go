package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Backend  BackendConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Feed     FeedConfig
	Issues   IssuesConfig
	Geocode  GeocodeConfig
	CORS     CORSConfig
	Log      LogConfig
}

// BackendConfig holds the two connection parameters the service cannot work without.
type BackendConfig struct {
	URL    string
	APIKey string
}

// Configured reports whether both connection parameters are present.
func (b BackendConfig) Configured() bool {
	return strings.TrimSpace(b.URL) != "" && strings.TrimSpace(b.APIKey) != ""
}

type DatabaseConfig struct {
	MaxOpenConns   int
	MaxIdleConns   int
	MigrateOnStart bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

// AuthConfig tunes the built-in authentication provider.
type AuthConfig struct {
	RequireEmailConfirmation bool
	MinPasswordLength        int
}

// FeedConfig configures the issue change feed listener.
type FeedConfig struct {
	MinReconnect time.Duration
	MaxReconnect time.Duration
	BufferSize   int
}

// IssuesConfig holds issue lifecycle settings.
type IssuesConfig struct {
	TransitionPolicy string
	PhotoMaxBytes    int64
}

// GeocodeConfig controls reverse geocoding of reported coordinates.
type GeocodeConfig struct {
	Enabled   bool
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		URL:    v.GetString("BACKEND_URL"),
		APIKey: v.GetString("BACKEND_API_KEY"),
	}

	cfg.Database = DatabaseConfig{
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	minPassword := v.GetInt("AUTH_MIN_PASSWORD_LENGTH")
	if minPassword <= 0 {
		minPassword = 6
	}
	cfg.Auth = AuthConfig{
		RequireEmailConfirmation: v.GetBool("AUTH_REQUIRE_EMAIL_CONFIRMATION"),
		MinPasswordLength:        minPassword,
	}

	cfg.Feed = FeedConfig{
		MinReconnect: parseDuration(v.GetString("FEED_MIN_RECONNECT"), 10*time.Second),
		MaxReconnect: parseDuration(v.GetString("FEED_MAX_RECONNECT"), time.Minute),
		BufferSize:   v.GetInt("FEED_BUFFER_SIZE"),
	}

	maxPhoto := v.GetInt64("PHOTO_MAX_BYTES")
	if maxPhoto <= 0 {
		maxPhoto = 5 * 1024 * 1024
	}
	cfg.Issues = IssuesConfig{
		TransitionPolicy: v.GetString("ISSUE_TRANSITION_POLICY"),
		PhotoMaxBytes:    maxPhoto,
	}

	cfg.Geocode = GeocodeConfig{
		Enabled:   v.GetBool("GEOCODE_ENABLED"),
		BaseURL:   v.GetString("GEOCODE_BASE_URL"),
		UserAgent: v.GetString("GEOCODE_USER_AGENT"),
		Timeout:   parseDuration(v.GetString("GEOCODE_TIMEOUT"), 10*time.Second),
		CacheTTL:  parseDuration(v.GetString("GEOCODE_CACHE_TTL"), time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_URL", "")
	v.SetDefault("BACKEND_API_KEY", "")

	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("MIGRATE_ON_START", true)

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "civic-report-api")

	v.SetDefault("AUTH_REQUIRE_EMAIL_CONFIRMATION", false)
	v.SetDefault("AUTH_MIN_PASSWORD_LENGTH", 6)

	v.SetDefault("FEED_MIN_RECONNECT", "10s")
	v.SetDefault("FEED_MAX_RECONNECT", "1m")
	v.SetDefault("FEED_BUFFER_SIZE", 64)

	v.SetDefault("ISSUE_TRANSITION_POLICY", "any")
	v.SetDefault("PHOTO_MAX_BYTES", 5*1024*1024)

	v.SetDefault("GEOCODE_ENABLED", false)
	v.SetDefault("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODE_USER_AGENT", "civic-report-api")
	v.SetDefault("GEOCODE_TIMEOUT", "10s")
	v.SetDefault("GEOCODE_CACHE_TTL", "60s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the coordinator
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Maps     MapsConfig     `toml:"maps"`
	Images   ImagesConfig   `toml:"images"`
	Cache    CacheConfig    `toml:"cache"`
	Audit    AuditConfig    `toml:"audit"`
	Auth     AuthConfig     `toml:"auth"`
	Push     PushConfig     `toml:"push"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `toml:"host" env:"HOST"`
	Port            int    `toml:"port" env:"PORT"`
	ReadTimeout     int    `toml:"read_timeout"`
	WriteTimeout    int    `toml:"write_timeout"`
	ShutdownTimeout int    `toml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
// URL wins over the individual connection fields when both are set.
type DatabaseConfig struct {
	URL            string `toml:"url" env:"DATABASE_URL"`
	Host           string `toml:"host" env:"DATABASE_HOST"`
	Port           int    `toml:"port"`
	User           string `toml:"user" env:"DATABASE_USER"`
	Password       string `toml:"password" env:"DATABASE_PASSWORD"`
	Database       string `toml:"database" env:"DATABASE_NAME"`
	SSLMode        string `toml:"ssl_mode"`
	MigrationsPath string `toml:"migrations_path" env:"MIGRATIONS_PATH"`
}

// GeminiConfig holds the text/vision model settings
type GeminiConfig struct {
	APIKey  string `toml:"api_key" env:"GEMINI_API_KEY"`
	Model   string `toml:"model" env:"GEMINI_MODEL"`
	BaseURL string `toml:"base_url"`
	Timeout int    `toml:"timeout"`
}

// MapsConfig holds the geocoding API settings
type MapsConfig struct {
	APIKey  string `toml:"api_key" env:"MAPS_API_KEY"`
	BaseURL string `toml:"base_url"`
	Timeout int    `toml:"timeout"`
}

// ImagesConfig holds report image download settings
type ImagesConfig struct {
	Timeout int `toml:"timeout"`
}

// CacheConfig holds lookup cache windows in seconds
type CacheConfig struct {
	SocialMediaTTL int `toml:"social_media_ttl"`
	GeocodeTTL     int `toml:"geocode_ttl"`
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// DefaultActor is recorded when an update carries no identity.
	// Set it to "-" to reject anonymous updates.
	DefaultActor string `toml:"default_actor" env:"AUDIT_DEFAULT_ACTOR"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" env:"JWT_SECRET"`
}

// PushConfig holds websocket fan-out settings
type PushConfig struct {
	SendBuffer     int      `toml:"send_buffer"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// KafkaConfig holds the optional event mirror settings
type KafkaConfig struct {
	Enabled bool     `toml:"enabled" env:"KAFKA_ENABLED"`
	Brokers []string `toml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `toml:"topic" env:"KAFKA_TOPIC"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// Load loads configuration from a TOML file and overlays environment variables.
// A missing file is not an error; the environment and defaults still apply.
func Load(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	config.SetDefaults()

	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Validate reports settings the server cannot start without
func (c *Config) Validate() error {
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "") {
		return errors.New("database credentials missing: set DATABASE_URL or [database] host, user and database")
	}
	return c.Kafka.Validate()
}

// Validate reports an enabled mirror without a destination
func (c *KafkaConfig) Validate() error {
	if c.Enabled && (len(c.Brokers) == 0 || c.Topic == "") {
		return errors.New("kafka enabled but brokers or topic not set")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) DatabaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SocialMediaWindow returns how long a social-media feed stays cached
func (c *CacheConfig) SocialMediaWindow() time.Duration {
	return time.Duration(c.SocialMediaTTL) * time.Second
}

// GeocodeWindow returns how long a geocode result stays cached
func (c *CacheConfig) GeocodeWindow() time.Duration {
	return time.Duration(c.GeocodeTTL) * time.Second
}

// AnonymousActor returns the identity recorded for updates without one,
// or "" when anonymous updates are rejected
func (c *AuditConfig) AnonymousActor() string {
	if c.DefaultActor == "-" {
		return ""
	}
	return c.DefaultActor
}

// SetDefaults sets default values for config
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-1.5-pro-latest"
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = 30
	}
	if c.Maps.BaseURL == "" {
		c.Maps.BaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	if c.Maps.Timeout == 0 {
		c.Maps.Timeout = 10
	}
	if c.Images.Timeout == 0 {
		c.Images.Timeout = 15
	}
	if c.Cache.SocialMediaTTL == 0 {
		c.Cache.SocialMediaTTL = 5 * 60
	}
	if c.Cache.GeocodeTTL == 0 {
		c.Cache.GeocodeTTL = 60 * 60
	}
	if c.Audit.DefaultActor == "" {
		c.Audit.DefaultActor = "reliefAdmin"
	}
	if c.Push.SendBuffer == 0 {
		c.Push.SendBuffer = 16
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "relief-events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

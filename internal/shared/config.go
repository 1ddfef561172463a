package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials" yaml:"credentials"`
	Database    DatabaseConfig    `toml:"database" yaml:"database"`
	Server      ServerConfig      `toml:"server" yaml:"server"`
	State       StateConfig       `toml:"state" yaml:"state"`
	HTTP        HTTPConfig        `toml:"http" yaml:"http"`
	Cache       CacheConfig       `toml:"cache" yaml:"cache"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// CredentialsConfig contains provider-specific credentials.
type CredentialsConfig struct {
	Spotify ProviderConfig `toml:"spotify" yaml:"spotify"`
	GPhotos ProviderConfig `toml:"gphotos" yaml:"gphotos"`
}

// ProviderConfig contains OAuth2 client credentials and access rules for one provider.
//
// An empty ClientID or ClientSecret disables every flow that talks to the provider.
type ProviderConfig struct {
	ClientID      string   `toml:"client_id" yaml:"client_id"`
	ClientSecret  string   `toml:"client_secret" yaml:"client_secret"`
	AllowedEmails []string `toml:"allowed_emails" yaml:"allowed_emails"`
	AlbumID       string   `toml:"album_id" yaml:"album_id"`
}

// Allowed reports whether email is on the allow-list. An empty list allows nobody.
func (p ProviderConfig) Allowed(email string) bool {
	for _, e := range p.AllowedEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

// DatabaseConfig contains database connection settings.
//
// Driver is "sqlite3" (Path is used) or "pgx" (DSN is used).
type DatabaseConfig struct {
	Driver       string `toml:"driver" yaml:"driver"`
	Path         string `toml:"path" yaml:"path"`
	DSN          string `toml:"dsn" yaml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// Source returns the data source name for the configured driver.
func (d DatabaseConfig) Source() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string `toml:"host" yaml:"host"`
	Port      int    `toml:"port" yaml:"port"`
	PublicURL string `toml:"public_url" yaml:"public_url"`
	AdminKey  string `toml:"admin_key" yaml:"admin_key"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StateConfig selects where state codes live and how long they stay valid.
type StateConfig struct {
	Backend    string      `toml:"backend" yaml:"backend"` // sql or redis
	TTLSeconds int         `toml:"ttl_seconds" yaml:"ttl_seconds"`
	Redis      RedisConfig `toml:"redis" yaml:"redis"`
}

// TTL returns the state code lifetime, defaulting to ten minutes.
func (s StateConfig) TTL() time.Duration {
	if s.TTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.TTLSeconds) * time.Second
}

// RedisConfig contains connection settings for the redis state backend.
type RedisConfig struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
}

// HTTPConfig bounds outbound provider traffic.
type HTTPConfig struct {
	TimeoutSeconds int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit" yaml:"rate_limit"` // requests per second, 0 disables
	Burst          int     `toml:"burst" yaml:"burst"`
}

// Timeout returns the outbound request timeout, defaulting to ten seconds.
func (h HTTPConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// CacheConfig controls caching of provider listings.
type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds" yaml:"ttl_seconds"`
}

// TTL returns the listing cache lifetime, defaulting to five minutes.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// LoadConfig reads and parses a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
		}
	default:
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
		}
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads a dotenv file into the process environment. A missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides secrets in c with LINKD_* environment variables when they are set.
func ApplyEnv(c *Config) {
	for name, dst := range map[string]*string{
		"LINKD_SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"LINKD_SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"LINKD_GPHOTOS_CLIENT_ID":     &c.Credentials.GPhotos.ClientID,
		"LINKD_GPHOTOS_CLIENT_SECRET": &c.Credentials.GPhotos.ClientSecret,
		"LINKD_DATABASE_DSN":          &c.Database.DSN,
		"LINKD_ADMIN_KEY":             &c.Server.AdminKey,
		"LINKD_REDIS_PASSWORD":        &c.State.Redis.Password,
	} {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
}

package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// CallbackPath is the OAuth callback route. The authorization server
// validates the redirect URI byte-for-byte, so every derivation of it
// goes through [Config.RedirectURI].
const CallbackPath = "/api/auth/callback"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// SessionConfig contains cookie session settings.
type SessionConfig struct {
	Secret string `toml:"secret"`
	MaxAge int    `toml:"max_age"` // seconds
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Domains    string `toml:"domains"` // comma-separated canonical domains, first entry wins
	Production bool   `toml:"production"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
// Returns [ErrMissingConfig] when no file exists there.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidConfig)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FromEnv overlays environment variables onto the config.
// Environment values win over file values when both are set.
func (c *Config) FromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("APP_DOMAINS"); v != "" {
		c.Server.Domains = v
	}
	if v := os.Getenv("PRODUCTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.Production = b
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// RedirectURI derives the OAuth callback URI for the given inbound request host.
//
// A configured canonical domain (first entry of the comma-separated list) takes
// precedence and is always served over https. Otherwise the scheme follows the
// host: http for localhost during development, https for everything else.
// Login and callback must call this with the same inputs or the authorization
// server rejects the exchange.
func (c *Config) RedirectURI(host string) string {
	if c.Server.Domains != "" {
		domain := strings.TrimSpace(strings.Split(c.Server.Domains, ",")[0])
		return "https://" + domain + CallbackPath
	}

	scheme := "https"
	if !c.Server.Production && isLocalhost(host) {
		scheme = "http"
	}
	return scheme + "://" + host + CallbackPath
}

func isLocalhost(host string) bool {
	h := host
	if i := strings.LastIndex(h, ":"); i >= 0 {
		h = h[:i]
	}
	return h == "localhost" || h == "127.0.0.1"
}

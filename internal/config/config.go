// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/adrg/xdg"
)

// Config holds the application configuration.
type Config struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	DatabasePath        string
	LogLevel            string
	DefaultMarket       string
}

// Load reads configuration from environment variables. Spotify credentials
// may be absent; commands that talk to the API check them via Credentials.
func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		resolved, err := xdg.DataFile("podfinder/podfinder.db")
		if err != nil {
			return nil, fmt.Errorf("resolve default database path: %w", err)
		}
		dbPath = resolved
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		DatabasePath:        dbPath,
		LogLevel:            logLevel,
		DefaultMarket:       os.Getenv("SPOTIFY_MARKET"),
	}, nil
}

// Credentials returns the Spotify API credentials or an error when either is
// missing. Absent credentials are a configuration error, not a run failure.
func (c *Config) Credentials() (id, secret string, err error) {
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return "", "", fmt.Errorf("Spotify credentials are not configured: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	}
	return c.SpotifyClientID, c.SpotifyClientSecret, nil
}

package config

import (
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want *Config
	}{
		{
			name: "all values set",
			env: map[string]string{
				"SPOTIFY_CLIENT_ID":     "id",
				"SPOTIFY_CLIENT_SECRET": "secret",
				"DATABASE_PATH":         "/tmp/podfinder.db",
				"LOG_LEVEL":             "debug",
				"SPOTIFY_MARKET":        "US",
			},
			want: &Config{
				SpotifyClientID:     "id",
				SpotifyClientSecret: "secret",
				DatabasePath:        "/tmp/podfinder.db",
				LogLevel:            "debug",
				DefaultMarket:       "US",
			},
		},
		{
			name: "defaults applied",
			env: map[string]string{
				"DATABASE_PATH": "/tmp/podfinder.db",
			},
			want: &Config{
				DatabasePath: "/tmp/podfinder.db",
				LogLevel:     "info",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "DATABASE_PATH", "LOG_LEVEL", "SPOTIFY_MARKET"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadDefaultDatabasePath(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("XDG_DATA_HOME", dataHome)
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(cfg.DatabasePath, dataHome) {
		t.Errorf("DatabasePath = %q, want under %q", cfg.DatabasePath, dataHome)
	}
	if !strings.HasSuffix(cfg.DatabasePath, "podfinder.db") {
		t.Errorf("DatabasePath = %q, want podfinder.db file", cfg.DatabasePath)
	}
}

func TestCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "both present",
			cfg:  Config{SpotifyClientID: "id", SpotifyClientSecret: "secret"},
		},
		{
			name:    "missing secret",
			cfg:     Config{SpotifyClientID: "id"},
			wantErr: true,
		},
		{
			name:    "missing both",
			cfg:     Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, err := tt.cfg.Credentials()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.cfg.SpotifyClientID || secret != tt.cfg.SpotifyClientSecret {
				t.Errorf("got (%q, %q), want (%q, %q)", id, secret, tt.cfg.SpotifyClientID, tt.cfg.SpotifyClientSecret)
			}
		})
	}
}

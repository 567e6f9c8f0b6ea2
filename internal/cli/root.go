// Package cli implements the podfinder command surface. Every command is a
// thin call into the storage and search layers.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podfinder/internal/config"
	"podfinder/internal/search"
	"podfinder/internal/spotify"
	"podfinder/internal/storage"
)

var flagDB string

var rootCmd = &cobra.Command{
	Use:   "podfinder",
	Short: "Track Spotify podcast searches for new episodes",
	Long: "podfinder stores Spotify episode searches and, on each run, reports the\n" +
		"episodes that appeared since the previous run. Scheduling is left to cron:\n" +
		"invoke 'podfinder run-due' as often as you like.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to the SQLite database (defaults to the XDG data directory)")

	rootCmd.AddCommand(addQueryCmd)
	rootCmd.AddCommand(listQueriesCmd)
	rootCmd.AddCommand(updateQueryCmd)
	rootCmd.AddCommand(deleteQueryCmd)
	rootCmd.AddCommand(runQueryCmd)
	rootCmd.AddCommand(runDueCmd)
	rootCmd.AddCommand(listEpisodesCmd)
	rootCmd.AddCommand(recentRunsCmd)
}

// Execute runs the command tree, exiting non-zero on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env bundles what an invocation needs: configuration, an open store, and a
// logger. The store is passed explicitly into every operation; there is no
// ambient database state.
type env struct {
	cfg   *config.Config
	store *storage.SQLite
	log   *slog.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DatabasePath = flagDB
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}

	return &env{cfg: cfg, store: store, log: newLogger(cfg.LogLevel)}, nil
}

func (e *env) close() {
	_ = e.store.Close()
}

// searchService builds the executor, failing when Spotify credentials are
// not configured.
func (e *env) searchService() (*search.Service, error) {
	id, secret, err := e.cfg.Credentials()
	if err != nil {
		return nil, err
	}
	client := spotify.New(id, secret, nil)
	return search.New(e.store, client, e.log), nil
}

// market resolves the effective market code: the flag when set, otherwise
// the configured default.
func (e *env) market(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return e.cfg.DefaultMarket
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func parseIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid query ID %q", arg)
	}
	return id, nil
}

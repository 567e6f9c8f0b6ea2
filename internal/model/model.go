// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SearchQuery represents a saved Spotify episode search.
type SearchQuery struct {
	ID                  int64
	Term                string
	Frequency           string
	ExcludeShows        []string
	ExcludeTitles       []string
	ExcludeDescriptions []string
	IncludeShows        []string
	IncludeTitles       []string
	IncludeDescriptions []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	LastRunAt           *time.Time
}

// Due reports whether the query should be executed at the given time.
// A query that has never run is always due.
func (q *SearchQuery) Due(now time.Time) bool {
	if q.LastRunAt == nil {
		return true
	}
	interval, err := FrequencyInterval(q.Frequency)
	if err != nil {
		// Unknown label can only come from a hand-edited database;
		// keep the query runnable rather than stranding it.
		return true
	}
	return !now.Before(q.LastRunAt.Add(interval))
}

// NextRunDue returns when the query is next due, or nil if it has never run.
func (q *SearchQuery) NextRunDue() *time.Time {
	if q.LastRunAt == nil {
		return nil
	}
	interval, err := FrequencyInterval(q.Frequency)
	if err != nil {
		return nil
	}
	t := q.LastRunAt.Add(interval)
	return &t
}

// Episode represents a Spotify podcast episode stored for a query.
// Episodes are append-only: once inserted they are never modified.
type Episode struct {
	ID          int64
	QueryID     int64
	EpisodeID   string
	Name        string
	ShowName    string
	ReleaseDate string
	Description string
	ExternalURL string
	URI         string
	DurationMS  int64
	RawData     string
	FirstSeenAt time.Time
}

// Run statuses recorded in the search run log.
const (
	RunSuccess = "success"
	RunError   = "error"
)

// SearchRun is one append-only log entry for an execution attempt.
type SearchRun struct {
	ID           int64
	QueryID      int64
	Term         string // populated on joined reads only
	RunAt        time.Time
	Status       string
	NewCount     int
	TotalResults int
	ErrorMessage string
}

const (
	day  = 24 * time.Hour
	week = 7 * day
)

var frequencyIntervals = map[string]time.Duration{
	"daily":     day,
	"weekly":    week,
	"biweekly":  2 * week,
	"monthly":   30 * day,
	"quarterly": 91 * day,
}

// FrequencyInterval translates a frequency label into a fixed duration.
// Labels are daily, weekly, biweekly, monthly (30 days), quarterly (91 days),
// plus "Nd" for N days and "Nw" for N weeks. There is no calendar alignment:
// "weekly" means exactly 168 hours after the last run.
func FrequencyInterval(frequency string) (time.Duration, error) {
	normalized := strings.ToLower(strings.TrimSpace(frequency))
	if normalized == "" {
		return 0, fmt.Errorf("frequency is empty")
	}
	if d, ok := frequencyIntervals[normalized]; ok {
		return d, nil
	}
	if n, ok := trailingNumber(normalized, 'd'); ok {
		return time.Duration(n) * day, nil
	}
	if n, ok := trailingNumber(normalized, 'w'); ok {
		return time.Duration(n) * week, nil
	}
	return 0, fmt.Errorf("invalid frequency %q", frequency)
}

// ValidateFrequency checks a frequency label without using the interval.
func ValidateFrequency(frequency string) error {
	_, err := FrequencyInterval(frequency)
	return err
}

func trailingNumber(s string, suffix byte) (int, bool) {
	if len(s) < 2 || s[len(s)-1] != suffix {
		return 0, false
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

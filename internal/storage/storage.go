// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"podfinder/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// EpisodeOrder selects the sort column for episode listings.
type EpisodeOrder string

// Supported episode orderings.
const (
	OrderByRelease   EpisodeOrder = "release"
	OrderByFirstSeen EpisodeOrder = "first"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateQuery(ctx context.Context, q *model.SearchQuery) error
	GetQuery(ctx context.Context, id int64) (*model.SearchQuery, error)
	FindQueryByTerm(ctx context.Context, term string) (*model.SearchQuery, error)
	ListQueries(ctx context.Context) ([]model.SearchQuery, error)
	UpdateQuery(ctx context.Context, q *model.SearchQuery) error
	SetLastRun(ctx context.Context, id int64, at time.Time) error
	DeleteQuery(ctx context.Context, id int64) error

	EpisodeIDs(ctx context.Context, queryID int64) (map[string]bool, error)
	InsertEpisode(ctx context.Context, e *model.Episode) error
	ListEpisodes(ctx context.Context, queryID int64, order EpisodeOrder, descending bool, limit int) ([]model.Episode, error)
	CountEpisodes(ctx context.Context, queryID int64) (int, error)

	InsertRun(ctx context.Context, r *model.SearchRun) error
	SaveRun(ctx context.Context, run *model.SearchRun, episodes []model.Episode) error
	ListRecentRuns(ctx context.Context, limit int) ([]model.SearchRun, error)

	Close() error
}

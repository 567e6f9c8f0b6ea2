// Package search implements query execution and new-episode detection.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podfinder/internal/filter"
	"podfinder/internal/model"
	"podfinder/internal/spotify"
	"podfinder/internal/storage"
)

// EpisodeSearcher is the interface to the external episode search API.
type EpisodeSearcher interface {
	SearchEpisodes(ctx context.Context, term, market string, limit, maxPages int) ([]spotify.Episode, error)
}

// Options control how a search is executed.
type Options struct {
	Market   string
	Limit    int
	MaxPages int
}

// Summary is the outcome of one successful execution.
type Summary struct {
	Query         model.SearchQuery
	Baseline      bool
	NewEpisodes   []model.Episode
	Processed     int
	Skipped       int
	PreviousCount int
	CurrentCount  int
	RunAt         time.Time
}

// Result pairs a query with its execution outcome in a batch run.
type Result struct {
	Query   model.SearchQuery
	Summary *Summary
	Err     error
}

// Service executes saved searches against the external API and persists
// what it finds.
type Service struct {
	store  storage.Storage
	client EpisodeSearcher
	log    *slog.Logger
}

// New creates a Service.
func New(store storage.Storage, client EpisodeSearcher, log *slog.Logger) *Service {
	return &Service{store: store, client: client, log: log}
}

// RunQuery executes a single query: search the API, drop filtered episodes,
// store the ones not seen before, log the run, and advance the query's
// last-run timestamp.
//
// The first successful execution stores every surviving episode as the
// baseline and reports zero new episodes; a query is a baseline until it has
// completed one run, even if that run found nothing. An API failure is
// recorded as an error run and leaves the last-run timestamp untouched, so
// the query stays due.
func (s *Service) RunQuery(ctx context.Context, query *model.SearchQuery, opts Options) (*Summary, error) {
	s.log.Debug("running query", "query_id", query.ID, "term", query.Term)
	now := time.Now().UTC()
	baseline := query.LastRunAt == nil

	results, err := s.client.SearchEpisodes(ctx, query.Term, opts.Market, opts.Limit, opts.MaxPages)
	if err != nil {
		s.recordFailure(ctx, query.ID, now, err)
		return nil, fmt.Errorf("run query %d: %w", query.ID, err)
	}

	known, err := s.store.EpisodeIDs(ctx, query.ID)
	if err != nil {
		return nil, fmt.Errorf("load known episodes: %w", err)
	}
	previous := len(known)

	rules := filter.QueryRules(query)
	seenThisRun := make(map[string]bool)

	var unseen []model.Episode
	processed, skipped := 0, 0
	for _, ep := range results {
		pass := filter.Match(filter.Episode{
			ShowName:    ep.ShowName,
			Title:       ep.Name,
			Description: ep.Description,
		}, rules)
		if !pass {
			skipped++
			continue
		}
		if seenThisRun[ep.ID] {
			continue
		}
		seenThisRun[ep.ID] = true
		processed++

		if known[ep.ID] {
			continue
		}
		unseen = append(unseen, model.Episode{
			QueryID:     query.ID,
			EpisodeID:   ep.ID,
			Name:        ep.Name,
			ShowName:    ep.ShowName,
			ReleaseDate: ep.ReleaseDate,
			Description: ep.Description,
			ExternalURL: ep.ExternalURL,
			URI:         ep.URI,
			DurationMS:  ep.DurationMS,
			RawData:     string(ep.Raw),
		})
	}

	newEpisodes := unseen
	newCount := len(newEpisodes)
	if baseline {
		// No completed run to diff against: everything stored is baseline.
		newCount = 0
		newEpisodes = nil
	}

	run := model.SearchRun{
		QueryID:      query.ID,
		RunAt:        now,
		Status:       model.RunSuccess,
		NewCount:     newCount,
		TotalResults: processed,
	}
	if err := s.store.SaveRun(ctx, &run, unseen); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	query.LastRunAt = &now

	current, err := s.store.CountEpisodes(ctx, query.ID)
	if err != nil {
		return nil, fmt.Errorf("count episodes: %w", err)
	}

	if newCount > 0 {
		s.log.Info("found new episodes", "query_id", query.ID, "term", query.Term, "count", newCount)
	}

	return &Summary{
		Query:         *query,
		Baseline:      baseline,
		NewEpisodes:   newEpisodes,
		Processed:     processed,
		Skipped:       skipped,
		PreviousCount: previous,
		CurrentCount:  current,
		RunAt:         now,
	}, nil
}

// RunDue executes every due query serially. A failure on one query is
// captured in its Result and does not abort the remaining queries.
func (s *Service) RunDue(ctx context.Context, opts Options) ([]Result, error) {
	queries, err := s.store.ListQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}

	now := time.Now().UTC()
	var results []Result
	for i := range queries {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		q := queries[i]
		if !q.Due(now) {
			continue
		}
		summary, err := s.RunQuery(ctx, &q, opts)
		if err != nil {
			s.log.Error("run query", "query_id", q.ID, "term", q.Term, "error", err)
		}
		results = append(results, Result{Query: q, Summary: summary, Err: err})
	}
	return results, nil
}

// recordFailure appends an error run so failed attempts stay visible in the
// history. The last-run timestamp is deliberately not advanced.
func (s *Service) recordFailure(ctx context.Context, queryID int64, at time.Time, cause error) {
	run := model.SearchRun{
		QueryID:      queryID,
		RunAt:        at,
		Status:       model.RunError,
		ErrorMessage: cause.Error(),
	}
	if err := s.store.InsertRun(ctx, &run); err != nil {
		s.log.Error("record failed run", "query_id", queryID, "error", err)
	}
}

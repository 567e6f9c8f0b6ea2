package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"podfinder/internal/model"
	"podfinder/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const queryColumns = `id, term, frequency, exclude_shows, exclude_titles, exclude_descriptions,
	 include_shows, include_titles, include_descriptions, created_at, updated_at, last_run_at`

// CreateQuery inserts a new search query and populates its ID and timestamps.
func (s *SQLite) CreateQuery(ctx context.Context, q *model.SearchQuery) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO search_queries (term, frequency, exclude_shows, exclude_titles, exclude_descriptions,
		 include_shows, include_titles, include_descriptions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Term, q.Frequency,
		encodeList(q.ExcludeShows), encodeList(q.ExcludeTitles), encodeList(q.ExcludeDescriptions),
		encodeList(q.IncludeShows), encodeList(q.IncludeTitles), encodeList(q.IncludeDescriptions),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	q.ID = id
	q.CreatedAt, _ = time.Parse(timeLayout, now)
	q.UpdatedAt = q.CreatedAt
	return nil
}

// GetQuery returns a single search query by its ID.
func (s *SQLite) GetQuery(ctx context.Context, id int64) (*model.SearchQuery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+queryColumns+` FROM search_queries WHERE id = ?`, id,
	)
	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("query %d: %w", id, ErrNotFound)
	}
	return q, err
}

// FindQueryByTerm returns the query with the given term, matched
// case-insensitively, or ErrNotFound.
func (s *SQLite) FindQueryByTerm(ctx context.Context, term string) (*model.SearchQuery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+queryColumns+` FROM search_queries WHERE term = ? COLLATE NOCASE`, term,
	)
	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("query %q: %w", term, ErrNotFound)
	}
	return q, err
}

// ListQueries returns all stored search queries.
func (s *SQLite) ListQueries(ctx context.Context) ([]model.SearchQuery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queryColumns+` FROM search_queries ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query search queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var queries []model.SearchQuery
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

// UpdateQuery persists changes to an existing query and bumps UpdatedAt.
func (s *SQLite) UpdateQuery(ctx context.Context, q *model.SearchQuery) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_queries
		 SET term = ?, frequency = ?, exclude_shows = ?, exclude_titles = ?, exclude_descriptions = ?,
		     include_shows = ?, include_titles = ?, include_descriptions = ?, updated_at = ?
		 WHERE id = ?`,
		q.Term, q.Frequency,
		encodeList(q.ExcludeShows), encodeList(q.ExcludeTitles), encodeList(q.ExcludeDescriptions),
		encodeList(q.IncludeShows), encodeList(q.IncludeTitles), encodeList(q.IncludeDescriptions),
		now, q.ID,
	)
	if err != nil {
		return fmt.Errorf("update query: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("query %d: %w", q.ID, ErrNotFound)
	}
	q.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// SetLastRun records the last successful execution time of a query.
func (s *SQLite) SetLastRun(ctx context.Context, id int64, at time.Time) error {
	formatted := at.UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE search_queries SET last_run_at = ?, updated_at = ? WHERE id = ?`,
		formatted, formatted, id,
	)
	if err != nil {
		return fmt.Errorf("set last run: %w", err)
	}
	return nil
}

// DeleteQuery removes a query together with its episodes and run history.
func (s *SQLite) DeleteQuery(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM episodes WHERE query_id = ?`, id); err != nil {
		return fmt.Errorf("delete episodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_runs WHERE query_id = ?`, id); err != nil {
		return fmt.Errorf("delete search runs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM search_queries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("query %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// EpisodeIDs returns the set of external episode IDs already stored for a query.
func (s *SQLite) EpisodeIDs(ctx context.Context, queryID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode_id FROM episodes WHERE query_id = ?`, queryID,
	)
	if err != nil {
		return nil, fmt.Errorf("query episode ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan episode id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// InsertEpisode stores a newly observed episode and populates its ID and
// FirstSeenAt. The (query_id, episode_id) pair is unique; inserting a
// duplicate fails.
func (s *SQLite) InsertEpisode(ctx context.Context, e *model.Episode) error {
	return insertEpisode(ctx, s.db, e)
}

func insertEpisode(ctx context.Context, ex execer, e *model.Episode) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := ex.ExecContext(ctx,
		`INSERT INTO episodes (query_id, episode_id, name, show_name, release_date, description,
		 external_url, uri, duration_ms, raw_data, first_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.QueryID, e.EpisodeID, e.Name, e.ShowName,
		nullIfEmpty(e.ReleaseDate), nullIfEmpty(e.Description),
		nullIfEmpty(e.ExternalURL), nullIfEmpty(e.URI),
		nullIfZero(e.DurationMS), nullIfEmpty(e.RawData),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	e.FirstSeenAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListEpisodes returns stored episodes for a query, sorted and limited.
// A non-positive limit returns everything.
func (s *SQLite) ListEpisodes(ctx context.Context, queryID int64, order EpisodeOrder, descending bool, limit int) ([]model.Episode, error) {
	column := "release_date"
	if order == OrderByFirstSeen {
		column = "first_seen_at"
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query_id, episode_id, name, show_name, release_date, description,
		 external_url, uri, duration_ms, raw_data, first_seen_at
		 FROM episodes WHERE query_id = ?
		 ORDER BY `+column+` `+direction+`, id `+direction+`
		 LIMIT ?`,
		queryID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var episodes []model.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// CountEpisodes returns the number of stored episodes for a query.
func (s *SQLite) CountEpisodes(ctx context.Context, queryID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM episodes WHERE query_id = ?`, queryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return count, nil
}

// InsertRun appends an execution attempt to the run log.
func (s *SQLite) InsertRun(ctx context.Context, r *model.SearchRun) error {
	return insertRun(ctx, s.db, r)
}

func insertRun(ctx context.Context, ex execer, r *model.SearchRun) error {
	runAt := r.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}
	formatted := runAt.UTC().Format(timeLayout)
	res, err := ex.ExecContext(ctx,
		`INSERT INTO search_runs (query_id, run_at, status, new_count, total_results, error_message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.QueryID, formatted, r.Status, r.NewCount, r.TotalResults, nullIfEmpty(r.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.RunAt, _ = time.Parse(timeLayout, formatted)
	return nil
}

// SaveRun persists the outcome of a completed execution in one transaction:
// the episodes observed for the first time, the run record, and the query's
// last-run timestamp. A failure on any statement leaves nothing behind, so an
// episode can never be marked seen without its run having been recorded.
func (s *SQLite) SaveRun(ctx context.Context, run *model.SearchRun, episodes []model.Episode) error {
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range episodes {
		if err := insertEpisode(ctx, tx, &episodes[i]); err != nil {
			return err
		}
	}
	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}

	formatted := run.RunAt.UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`UPDATE search_queries SET last_run_at = ?, updated_at = ? WHERE id = ?`,
		formatted, formatted, run.QueryID,
	); err != nil {
		return fmt.Errorf("set last run: %w", err)
	}
	return tx.Commit()
}

// ListRecentRuns returns the most recent runs first, joined with the query
// term. A non-positive limit returns everything.
func (s *SQLite) ListRecentRuns(ctx context.Context, limit int) ([]model.SearchRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.query_id, q.term, r.run_at, r.status, r.new_count, r.total_results, r.error_message
		 FROM search_runs r
		 JOIN search_queries q ON q.id = r.query_id
		 ORDER BY r.run_at DESC, r.id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.SearchRun
	for rows.Next() {
		var r model.SearchRun
		var runAt string
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.QueryID, &r.Term, &runAt, &r.Status, &r.NewCount, &r.TotalResults, &errText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.RunAt, _ = time.Parse(timeLayout, runAt)
		r.ErrorMessage = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func encodeList(values []string) string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			cleaned = append(cleaned, v)
		}
	}
	data, err := json.Marshal(cleaned)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(value string) []string {
	var items []string
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZero(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}

type scannable interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanQuery(row scannable) (*model.SearchQuery, error) {
	var q model.SearchQuery
	var exShows, exTitles, exDescs string
	var incShows, incTitles, incDescs string
	var created, updated string
	var lastRun sql.NullString
	err := row.Scan(&q.ID, &q.Term, &q.Frequency, &exShows, &exTitles, &exDescs,
		&incShows, &incTitles, &incDescs, &created, &updated, &lastRun)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan query: %w", err)
	}
	q.ExcludeShows = decodeList(exShows)
	q.ExcludeTitles = decodeList(exTitles)
	q.ExcludeDescriptions = decodeList(exDescs)
	q.IncludeShows = decodeList(incShows)
	q.IncludeTitles = decodeList(incTitles)
	q.IncludeDescriptions = decodeList(incDescs)
	q.CreatedAt, _ = time.Parse(timeLayout, created)
	q.UpdatedAt, _ = time.Parse(timeLayout, updated)
	if lastRun.Valid {
		t, _ := time.Parse(timeLayout, lastRun.String)
		q.LastRunAt = &t
	}
	return &q, nil
}

func scanEpisode(row scannable) (model.Episode, error) {
	var e model.Episode
	var release, desc, extURL, uri, raw sql.NullString
	var duration sql.NullInt64
	var firstSeen string
	err := row.Scan(&e.ID, &e.QueryID, &e.EpisodeID, &e.Name, &e.ShowName,
		&release, &desc, &extURL, &uri, &duration, &raw, &firstSeen)
	if err != nil {
		return e, fmt.Errorf("scan episode: %w", err)
	}
	e.ReleaseDate = release.String
	e.Description = desc.String
	e.ExternalURL = extURL.String
	e.URI = uri.String
	e.DurationMS = duration.Int64
	e.RawData = raw.String
	e.FirstSeenAt, _ = time.Parse(timeLayout, firstSeen)
	return e, nil
}

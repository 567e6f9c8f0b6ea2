// Package spotify is a minimal Spotify Web API client for podcast episode
// discovery. It handles the client-credentials token flow, paged episode
// search, and batch hydration of episode details.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	tokenURL    = "https://accounts.spotify.com/api/token"
	searchURL   = "https://api.spotify.com/v1/search"
	episodesURL = "https://api.spotify.com/v1/episodes"

	// Spotify caps both search page size and the batch episodes endpoint at 50.
	maxPageSize = 50

	maxBodySize = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Episode is a normalized episode record from the Spotify API. Optional
// fields (release date, description, URL, duration) are left zero when the
// API omits them.
type Episode struct {
	ID          string
	Name        string
	ShowName    string
	ReleaseDate string
	Description string
	ExternalURL string
	URI         string
	DurationMS  int64
	Raw         json.RawMessage
}

// Client calls the Spotify Web API with client-credentials authentication.
type Client struct {
	http         HTTPClient
	clientID     string
	clientSecret string

	token          string
	tokenExpiresAt time.Time
}

// New creates a Client. A nil httpClient falls back to a default client with
// a finite request timeout.
func New(clientID, clientSecret string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		http:         httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// SearchEpisodes returns all episodes matching the search term, in API order.
// market is an optional region code. limit is the page size (clamped to the
// API maximum); maxPages caps the number of pages retrieved, 0 meaning no cap.
// Results are hydrated through the batch episodes endpoint so that show names
// are populated, which the simplified search objects may omit.
func (c *Client) SearchEpisodes(ctx context.Context, term, market string, limit, maxPages int) ([]Episode, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("search term must not be empty")
	}
	if limit < 1 || limit > maxPageSize {
		limit = maxPageSize
	}

	var (
		episodes []Episode
		ids      []string
		offset   int
		pages    int
	)
	for {
		params := url.Values{
			"q":      {term},
			"type":   {"episode"},
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		}
		if market != "" {
			params.Set("market", market)
		}

		var page searchResponse
		if err := c.getJSON(ctx, searchURL+"?"+params.Encode(), &page); err != nil {
			return nil, fmt.Errorf("search episodes: %w", err)
		}

		for _, raw := range page.Episodes.Items {
			ep, ok := decodeEpisode(raw)
			if !ok {
				continue
			}
			episodes = append(episodes, ep)
			ids = append(ids, ep.ID)
		}

		offset += len(page.Episodes.Items)
		pages++
		if len(page.Episodes.Items) == 0 || offset >= page.Episodes.Total {
			break
		}
		if maxPages > 0 && pages >= maxPages {
			break
		}
	}

	full, err := c.episodeDetails(ctx, ids, market)
	if err != nil {
		return nil, err
	}
	for i := range episodes {
		if ep, ok := full[episodes[i].ID]; ok {
			episodes[i] = ep
		}
	}
	return episodes, nil
}

// episodeDetails fetches full episode objects in batches of 50 and returns
// them keyed by episode ID. Unavailable episodes come back as nulls from the
// API and are dropped.
func (c *Client) episodeDetails(ctx context.Context, ids []string, market string) (map[string]Episode, error) {
	details := make(map[string]Episode, len(ids))
	for start := 0; start < len(ids); start += maxPageSize {
		end := min(start+maxPageSize, len(ids))
		params := url.Values{"ids": {strings.Join(ids[start:end], ",")}}
		if market != "" {
			params.Set("market", market)
		}

		var batch episodesResponse
		if err := c.getJSON(ctx, episodesURL+"?"+params.Encode(), &batch); err != nil {
			return nil, fmt.Errorf("fetch episode details: %w", err)
		}
		for _, raw := range batch.Episodes {
			if ep, ok := decodeEpisode(raw); ok {
				details[ep.ID] = ep
			}
		}
	}
	return details, nil
}

type searchResponse struct {
	Episodes struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	} `json:"episodes"`
}

type episodesResponse struct {
	Episodes []json.RawMessage `json:"episodes"`
}

type episodeObject struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ReleaseDate  string            `json:"release_date"`
	URI          string            `json:"uri"`
	DurationMS   int64             `json:"duration_ms"`
	ExternalURLs map[string]string `json:"external_urls"`
	Show         *struct {
		Name string `json:"name"`
	} `json:"show"`
}

// decodeEpisode normalizes one raw API episode object. Records that are null
// or have no ID are dropped.
func decodeEpisode(raw json.RawMessage) (Episode, bool) {
	var obj episodeObject
	if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == "" {
		return Episode{}, false
	}
	ep := Episode{
		ID:          obj.ID,
		Name:        obj.Name,
		ReleaseDate: obj.ReleaseDate,
		Description: obj.Description,
		ExternalURL: obj.ExternalURLs["spotify"],
		URI:         obj.URI,
		DurationMS:  obj.DurationMS,
		Raw:         raw,
	}
	if obj.Show != nil {
		ep.ShowName = obj.Show.Name
	}
	return ep, true
}

// getJSON performs an authorized GET and decodes the response. Rate limiting
// and server errors are retried with bounded exponential backoff; a 401
// invalidates the cached token so the retry re-authenticates.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("http get: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			c.token = ""
			return retry.RetryableError(fmt.Errorf("token rejected (status 401)"))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read body: %w", err))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// ensureToken returns a valid access token, requesting a new one when the
// cached token is missing or about to expire.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if c.token != "" && time.Now().Before(c.tokenExpiresAt) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("authenticate with Spotify (status %d): %s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response has no access token")
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}

	c.token = payload.AccessToken
	// Refresh slightly early so a token never expires mid-run.
	c.tokenExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - 30*time.Second)
	return c.token, nil
}

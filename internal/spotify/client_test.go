package spotify

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/h2non/gock"
)

var ignoreRaw = cmpopts.IgnoreFields(Episode{}, "Raw")

func newTestClient(t *testing.T) *Client {
	t.Helper()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	t.Cleanup(gock.Off)
	return New("test-id", "test-secret", hc)
}

func mockToken() {
	gock.New("https://accounts.spotify.com").
		Post("/api/token").
		Reply(200).
		JSON(map[string]any{"access_token": "test-token", "expires_in": 3600})
}

const searchPage = `{
	"episodes": {
		"items": [
			{"id": "ep1", "name": "Interview with Jane Doe", "release_date": "2026-08-20",
			 "uri": "spotify:episode:ep1", "duration_ms": 3600000,
			 "external_urls": {"spotify": "https://open.spotify.com/episode/ep1"}},
			{"id": "ep2", "name": "Weekly Recap"}
		],
		"total": 2
	}
}`

const episodeBatch = `{
	"episodes": [
		{"id": "ep1", "name": "Interview with Jane Doe", "release_date": "2026-08-20",
		 "uri": "spotify:episode:ep1", "duration_ms": 3600000,
		 "external_urls": {"spotify": "https://open.spotify.com/episode/ep1"},
		 "show": {"name": "The Daily Tech Show"}},
		{"id": "ep2", "name": "Weekly Recap", "show": {"name": "Recap FM"}}
	]
}`

func TestSearchEpisodes(t *testing.T) {
	c := newTestClient(t)

	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		MatchParam("q", "jane doe").
		MatchParam("type", "episode").
		MatchParam("market", "US").
		Reply(200).
		BodyString(searchPage)
	gock.New("https://api.spotify.com").
		Get("/v1/episodes").
		MatchParam("ids", "ep1,ep2").
		Reply(200).
		BodyString(episodeBatch)

	got, err := c.SearchEpisodes(context.Background(), "jane doe", "US", 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Episode{
		{
			ID:          "ep1",
			Name:        "Interview with Jane Doe",
			ShowName:    "The Daily Tech Show",
			ReleaseDate: "2026-08-20",
			ExternalURL: "https://open.spotify.com/episode/ep1",
			URI:         "spotify:episode:ep1",
			DurationMS:  3600000,
		},
		{ID: "ep2", Name: "Weekly Recap", ShowName: "Recap FM"},
	}
	if diff := cmp.Diff(want, got, ignoreRaw); diff != "" {
		t.Errorf("episodes mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchEpisodesPaging(t *testing.T) {
	c := newTestClient(t)

	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		MatchParam("offset", "0").
		Reply(200).
		BodyString(`{"episodes": {"items": [{"id": "ep1", "name": "First"}], "total": 2}}`)
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		MatchParam("offset", "1").
		Reply(200).
		BodyString(`{"episodes": {"items": [{"id": "ep2", "name": "Second"}], "total": 2}}`)
	gock.New("https://api.spotify.com").
		Get("/v1/episodes").
		MatchParam("ids", "ep1,ep2").
		Reply(200).
		BodyString(`{"episodes": [null, null]}`)

	got, err := c.SearchEpisodes(context.Background(), "test", "", 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Batch hydration returned nulls, so the simplified records survive.
	want := []Episode{
		{ID: "ep1", Name: "First"},
		{ID: "ep2", Name: "Second"},
	}
	if diff := cmp.Diff(want, got, ignoreRaw); diff != "" {
		t.Errorf("episodes mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchEpisodesMaxPages(t *testing.T) {
	c := newTestClient(t)

	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		MatchParam("offset", "0").
		Reply(200).
		BodyString(`{"episodes": {"items": [{"id": "ep1", "name": "First"}], "total": 100}}`)
	gock.New("https://api.spotify.com").
		Get("/v1/episodes").
		Reply(200).
		BodyString(`{"episodes": [null]}`)

	got, err := c.SearchEpisodes(context.Background(), "test", "", 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected a single page of results, got %d episodes", len(got))
	}
}

func TestSearchEpisodesNoResults(t *testing.T) {
	c := newTestClient(t)

	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		Reply(200).
		BodyString(`{"episodes": {"items": [], "total": 0}}`)

	got, err := c.SearchEpisodes(context.Background(), "nobody", "", 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no episodes, got %d", len(got))
	}
}

func TestSearchEpisodesEmptyTerm(t *testing.T) {
	c := newTestClient(t)
	if _, err := c.SearchEpisodes(context.Background(), "  ", "", 50, 0); err == nil {
		t.Fatal("expected error for empty term")
	}
}

func TestSearchEpisodesAuthFailure(t *testing.T) {
	c := newTestClient(t)

	gock.New("https://accounts.spotify.com").
		Post("/api/token").
		Reply(400).
		BodyString(`{"error": "invalid_client"}`)

	if _, err := c.SearchEpisodes(context.Background(), "test", "", 50, 0); err == nil {
		t.Fatal("expected error when authentication fails")
	}
}

func TestSearchEpisodesTokenRefreshOn401(t *testing.T) {
	c := newTestClient(t)

	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		Reply(401).
		BodyString(`{"error": {"status": 401}}`)
	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		Reply(200).
		BodyString(`{"episodes": {"items": [], "total": 0}}`)

	got, err := c.SearchEpisodes(context.Background(), "test", "", 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no episodes, got %d", len(got))
	}
}

func TestSearchEpisodesRateLimitRetried(t *testing.T) {
	c := newTestClient(t)

	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		Reply(429).
		BodyString(`{"error": {"status": 429}}`)
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		Reply(200).
		BodyString(`{"episodes": {"items": [], "total": 0}}`)

	if _, err := c.SearchEpisodes(context.Background(), "test", "", 50, 0); err != nil {
		t.Fatalf("unexpected error after rate limit retry: %v", err)
	}
}

func TestSearchEpisodesHardFailure(t *testing.T) {
	c := newTestClient(t)

	mockToken()
	gock.New("https://api.spotify.com").
		Get("/v1/search").
		Reply(404).
		BodyString(`{"error": {"status": 404}}`)

	if _, err := c.SearchEpisodes(context.Background(), "test", "", 50, 0); err == nil {
		t.Fatal("expected error for non-retryable status")
	}
}

func TestDecodeEpisode(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   Episode
		wantOK bool
	}{
		{
			name:   "missing optional fields",
			raw:    `{"id": "ep9", "name": "Bare"}`,
			want:   Episode{ID: "ep9", Name: "Bare"},
			wantOK: true,
		},
		{
			name:   "null record dropped",
			raw:    `null`,
			wantOK: false,
		},
		{
			name:   "no id dropped",
			raw:    `{"name": "Anonymous"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeEpisode([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got, ignoreRaw); diff != "" {
				t.Errorf("episode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

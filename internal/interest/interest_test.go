package interest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/event"
)

func TestAnnotateFuzzyMatchesArtist(t *testing.T) {
	t.Parallel()

	matcher := NewMatcher([]Entry{
		{Name: "Robin and the Backstabbers", URL: "https://open.spotify.com/artist/robin"},
	}, DefaultThreshold, zerolog.Nop())

	events := []event.Event{
		{Title: "Concert", Artist: event.StringPtr("Robin & the Backstabbers"), Category: event.Music},
		{Title: "Concert", Artist: event.StringPtr("Subcarpati"), Category: event.Music},
	}

	annotated, matched := matcher.Annotate(events)
	if matched != 1 {
		t.Fatalf("expected 1 match, got %d", matched)
	}
	if annotated[0].InterestMatch == nil || !*annotated[0].InterestMatch {
		t.Fatalf("expected first event flagged as matched")
	}
	if annotated[0].InterestURL == nil || *annotated[0].InterestURL != "https://open.spotify.com/artist/robin" {
		t.Fatalf("expected interest URL, got %v", annotated[0].InterestURL)
	}
	if annotated[1].InterestMatch == nil || *annotated[1].InterestMatch {
		t.Fatalf("expected second event flagged as not matched")
	}
	if events[0].InterestMatch != nil {
		t.Fatalf("Annotate must not modify its input")
	}
}

func TestAnnotateSkipsNonMusic(t *testing.T) {
	t.Parallel()

	matcher := NewMatcher([]Entry{{Name: "Hamlet"}}, DefaultThreshold, zerolog.Nop())
	annotated, matched := matcher.Annotate([]event.Event{
		{Title: "Hamlet", Category: event.Theatre},
	})
	if matched != 0 || annotated[0].InterestMatch != nil {
		t.Fatalf("non-music events must carry no interest flag")
	}
}

func TestMatchUsesTitleWhenArtistMissingAndFirstEntryWins(t *testing.T) {
	t.Parallel()

	matcher := NewMatcher([]Entry{
		{Name: "Vita de Vie", URL: "first"},
		{Name: "Vița de Vie", URL: "duplicate"},
		{Name: "Vita de Vii", URL: "fuzzy"},
	}, DefaultThreshold, zerolog.Nop())

	if matcher.Len() != 2 {
		t.Fatalf("normalized duplicates must collapse, got %d entries", matcher.Len())
	}

	annotated, _ := matcher.Annotate([]event.Event{{Title: "VIȚA DE VIE", Category: event.Music}})
	if annotated[0].InterestURL == nil || *annotated[0].InterestURL != "first" {
		t.Fatalf("expected first entry to win, got %v", annotated[0].InterestURL)
	}
}

func TestNilMatcherFlagsMusicAsUnmatched(t *testing.T) {
	t.Parallel()

	var matcher *Matcher
	annotated, matched := matcher.Annotate([]event.Event{{Title: "X", Category: event.Music}})
	if matched != 0 || annotated[0].InterestMatch == nil || *annotated[0].InterestMatch {
		t.Fatalf("unexpected annotation: %+v", annotated[0])
	}
}

func TestFileProviderParsesLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artists.txt")
	content := "# followed\nSubcarpați\n\nRobin and the Backstabbers\thttps://open.spotify.com/artist/robin\n  \t ignored-url\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	entries, err := FileProvider{Path: path}.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[1].URL != "https://open.spotify.com/artist/robin" {
		t.Fatalf("unexpected url: %q", entries[1].URL)
	}
}

func TestSpotifyProviderFollowsPagination(t *testing.T) {
	t.Parallel()

	var pages atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err := r.ParseForm(); err != nil || r.PostForm.Get("refresh_token") != "refresh" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"token-1","token_type":"Bearer","expires_in":3600}`))
		case "/v1/me/following":
			if r.Header.Get("Authorization") != "Bearer token-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			pages.Add(1)
			if r.URL.Query().Get("after") == "" {
				next := fmt.Sprintf("%s/v1/me/following?type=artist&limit=50&after=abc", srv.URL)
				_, _ = fmt.Fprintf(w, `{"artists":{"items":[{"name":"Subcarpati","external_urls":{"spotify":"https://open.spotify.com/artist/1"}}],"next":%q}}`, next)
				return
			}
			_, _ = w.Write([]byte(`{"artists":{"items":[{"name":"Dirty Shirt","external_urls":{"spotify":""}}],"next":null}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	provider := &SpotifyProvider{
		ClientID:     "client",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		TokenURL:     srv.URL + "/api/token",
		APIURL:       srv.URL + "/v1",
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
	}

	entries, err := provider.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "Subcarpati" || entries[1].Name != "Dirty Shirt" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].URL != "https://open.spotify.com/artist/1" {
		t.Fatalf("unexpected artist url: %q", entries[0].URL)
	}
	if got := pages.Load(); got != 2 {
		t.Fatalf("expected 2 pages fetched, got %d", got)
	}
}

func TestSpotifyProviderRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := (&SpotifyProvider{}).Entries(context.Background()); err == nil {
		t.Fatalf("expected credentials error")
	}
}

package tmdb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", srv.URL, "https://image.example.com/t/p", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const searchBody = `{
	"results": [
		{"id": 603, "title": "The Matrix", "release_date": "1999-03-30", "poster_path": "/abc.jpg", "vote_count": 26000},
		{"id": 604, "title": "The Matrix Reloaded", "release_date": "2003-05-15", "poster_path": "/def.jpg", "vote_count": 12000}
	]
}`

func TestAugment(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "The Matrix" {
			t.Errorf("query param = %q", got)
		}
		if got := r.URL.Query().Get("year"); got != "1999" {
			t.Errorf("year param = %q", got)
		}
		fmt.Fprint(w, searchBody)
	}))

	poster, votes, err := c.Augment(context.Background(), "The Matrix", 1999)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if poster != "https://image.example.com/t/p/w500/abc.jpg" {
		t.Errorf("poster = %q", poster)
	}
	if votes != 26000 {
		t.Errorf("votes = %d, want first result only", votes)
	}
}

func TestAugmentOmitsZeroYear(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("year") {
			t.Error("year filter should be omitted when unknown")
		}
		fmt.Fprint(w, `{"results": []}`)
	}))

	poster, votes, err := c.Augment(context.Background(), "Obscure Film", 0)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if poster != "" || votes != 0 {
		t.Errorf("expected zero values on no results, got %q %d", poster, votes)
	}
}

func TestAugmentFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results": "not an array"}`)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>maintenance</html>`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			poster, votes, err := c.Augment(context.Background(), "Anything", 0)
			if err == nil {
				t.Fatal("expected an error")
			}
			if poster != "" || votes != 0 {
				t.Errorf("failure must yield zero values, got %q %d", poster, votes)
			}
		})
	}
}

func TestFindExactSlug(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, searchBody)
	}))

	if got := c.FindExactSlug(context.Background(), "matrix", 0); got != "the-matrix-1999" {
		t.Errorf("FindExactSlug = %q, want the-matrix-1999", got)
	}
}

func TestFindExactSlugFallsBack(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))

	if got := c.FindExactSlug(context.Background(), "The Matrix", 0); got != "the-matrix" {
		t.Errorf("FindExactSlug fallback = %q, want the-matrix", got)
	}
}

func TestPosterURL(t *testing.T) {
	c := NewClient("k", "https://api.example.com", "https://image.example.com/t/p", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if got := c.PosterURL("/abc.jpg"); got != "https://image.example.com/t/p/w500/abc.jpg" {
		t.Errorf("PosterURL = %q", got)
	}
	if got := c.PosterURL(""); got != "" {
		t.Errorf("empty path must yield empty URL, got %q", got)
	}
}

// Package tmdb looks up secondary movie metadata (poster path, vote
// count) in the external index API. Every call here is best-effort:
// a failed lookup must never cost the caller its record.
package tmdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/movierec/movierec/lib/slug"
	"github.com/movierec/movierec/lib/validation"
)

const posterSize = "w500"

// Client is the metadata index API client.
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

// SearchResult is the index's movie search response. Only the fields
// the engine consumes are declared.
type SearchResult struct {
	Results []struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		ReleaseDate string `json:"release_date"`
		PosterPath  string `json:"poster_path"`
		VoteCount   int    `json:"vote_count"`
	} `json:"results"`
}

func NewClient(apiKey, baseURL, imageBaseURL string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		imageBaseURL: strings.TrimSuffix(imageBaseURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
}

// SearchMovie queries the index by free-text title with an optional
// year filter (year 0 omits the filter). The response body is checked
// against the expected schema before decoding.
func (c *Client) SearchMovie(ctx context.Context, title string, year int) (*SearchResult, error) {
	searchURL := fmt.Sprintf("%s/search/movie?api_key=%s&query=%s",
		c.baseURL, c.apiKey, url.QueryEscape(title))
	if year > 0 {
		searchURL += "&year=" + strconv.Itoa(year)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", slog.Any("error", err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result SearchResult
	if err := validation.ParseSearchResponse(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// Augment resolves a title+year to the first search result's poster URL
// and vote count. Zero values and an error on any failure; the caller
// decides to degrade, not this client.
func (c *Client) Augment(ctx context.Context, title string, year int) (posterURL string, voteCount int, err error) {
	result, err := c.SearchMovie(ctx, title, year)
	if err != nil {
		return "", 0, err
	}
	if len(result.Results) == 0 {
		return "", 0, nil
	}

	// First result only; the year filter is all the disambiguation we do.
	first := result.Results[0]
	return c.PosterURL(first.PosterPath), first.VoteCount, nil
}

// FindExactSlug resolves a free-text title to the catalog slug of the
// index's best match, suffixed with its release year when the index
// knows one. Falls back to a plain slug of the input on any failure.
func (c *Client) FindExactSlug(ctx context.Context, title string, year int) string {
	result, err := c.SearchMovie(ctx, title, year)
	if err != nil || len(result.Results) == 0 {
		return slug.Slugify(title)
	}

	first := result.Results[0]
	if len(first.ReleaseDate) >= 4 {
		return slug.Slugify(fmt.Sprintf("%s %s", first.Title, first.ReleaseDate[:4]))
	}
	return slug.Slugify(first.Title)
}

// PosterURL builds the full-size poster URL for a poster path, or ""
// when the index has no poster.
func (c *Client) PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.imageBaseURL, posterSize, posterPath)
}

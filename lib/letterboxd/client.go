// Package letterboxd fetches and parses film pages from the catalog
// site. The parser is best-effort: the site's markup is not under our
// control, so every field except the title may come back empty.
package letterboxd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/net/html"
)

const (
	requestTimeout = 15 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxSearchSlugs caps how many film links we take from one search
	// results page.
	maxSearchSlugs = 10
)

// ErrorKind classifies a fetch failure so call sites can decide how to
// degrade instead of guessing from error strings.
type ErrorKind int

const (
	// KindNetwork covers transport failures, including timeouts.
	KindNetwork ErrorKind = iota
	// KindNotFound is any non-2xx status; the slug has no film page.
	KindNotFound
	// KindMalformed is a page we fetched but could not read.
	KindMalformed
)

// FetchError is a failed catalog retrieval. Fetch failures are terminal
// for their slug within a discovery call; there are no retries.
type FetchError struct {
	Kind ErrorKind
	Slug string
	Err  error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("no film page for %q", e.Slug)
	case KindMalformed:
		return fmt.Sprintf("unreadable film page for %q: %v", e.Slug, e.Err)
	default:
		return fmt.Sprintf("fetch failed for %q: %v", e.Slug, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a FetchError for a missing page.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindNotFound
}

// Client retrieves pages from the catalog site.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// FilmURL returns the public page URL for a slug.
func (c *Client) FilmURL(slug string) string {
	return fmt.Sprintf("%s/film/%s/", c.baseURL, slug)
}

// FilmPage fetches the HTML for one film page. A non-2xx status means
// the slug does not name a real film and comes back as KindNotFound.
func (c *Client) FilmPage(ctx context.Context, slug string) (string, error) {
	body, err := c.get(ctx, c.FilmURL(slug))
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Slug = slug
		}
		return "", err
	}
	return body, nil
}

// SearchSlugs scrapes the catalog's film search page and returns the
// first distinct film slugs found in its anchors, at most
// maxSearchSlugs of them, in page order.
func (c *Client) SearchSlugs(ctx context.Context, query string) ([]string, error) {
	searchURL := fmt.Sprintf("%s/search/films/%s/", c.baseURL, url.PathEscape(query))

	body, err := c.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, &FetchError{Kind: KindMalformed, Err: err}
	}

	var slugs []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(slugs) >= maxSearchSlugs {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if s := slugFromHref(attr(n, "href")); s != "" && !seen[s] {
				seen[s] = true
				slugs = append(slugs, s)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	c.logger.Debug("catalog search parsed", slog.String("query", query), slog.Int("slugs", len(slugs)))
	return slugs, nil
}

// slugFromHref pulls the slug out of an href like
// "/film/the-matrix/" or "https://…/film/the-matrix/reviews/".
func slugFromHref(href string) string {
	idx := strings.Index(href, "/film/")
	if idx < 0 {
		return ""
	}
	rest := href[idx+len("/film/"):]
	if cut := strings.IndexByte(rest, '/'); cut >= 0 {
		rest = rest[:cut]
	}
	return rest
}

func (c *Client) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{Kind: KindNetwork, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", slog.Any("error", err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{Kind: KindNotFound, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Kind: KindMalformed, Err: err}
	}
	return string(body), nil
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Package discover coordinates a movie lookup: cache-first against the
// store, then a bounded, paced scrape of the catalog for candidate
// slugs, augmentation from the metadata index, write-back, and ranking.
package discover

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/movierec/movierec/lib/slug"
	"github.com/movierec/movierec/lib/store"
	"github.com/movierec/movierec/lib/validation"
	"github.com/movierec/movierec/models"
)

const (
	// cacheHitThreshold is how many store rows satisfy a query without
	// going online. It exists to bound scraping volume and keep local
	// queries fast.
	cacheHitThreshold = 4
	// maxCandidates caps how many slug probes one query dispatches.
	maxCandidates = 15
	// maxInFlight bounds concurrent fetch pipelines.
	maxInFlight = 3
	// maxResults is the final truncation of the ranked list.
	maxResults = 8

	// Pacing window applied once per dispatched fetch, uniform random,
	// to stay under the catalog's anti-scraping thresholds.
	minFetchDelay = 1000 * time.Millisecond
	maxFetchDelay = 3000 * time.Millisecond
)

// Catalog is the slice of the catalog client the engine needs.
type Catalog interface {
	FilmPage(ctx context.Context, slug string) (string, error)
	SearchSlugs(ctx context.Context, query string) ([]string, error)
	ExtractMovie(page, slug string) *models.Movie
}

// Metadata is the secondary index lookup.
type Metadata interface {
	Augment(ctx context.Context, title string, year int) (posterURL string, voteCount int, err error)
}

// PosterFetcher turns a poster URL into a stored artifact.
type PosterFetcher interface {
	DownloadAsDataURI(ctx context.Context, posterURL string) (string, error)
}

// Engine is the discovery orchestrator. Each Engine owns its own permit
// pool, so independent instances (one per test, say) never share
// throttle state.
type Engine struct {
	store   *store.Store
	catalog Catalog
	meta    Metadata
	posters PosterFetcher
	logger  *slog.Logger

	permits chan struct{}

	// sleep and delay are injection points for tests; production uses
	// time.Sleep and a uniform draw from the pacing window.
	sleep func(time.Duration)
	delay func() time.Duration
}

func New(st *store.Store, catalog Catalog, meta Metadata, posters PosterFetcher, logger *slog.Logger) *Engine {
	return &Engine{
		store:   st,
		catalog: catalog,
		meta:    meta,
		posters: posters,
		logger:  logger,
		permits: make(chan struct{}, maxInFlight),
		sleep:   time.Sleep,
		delay: func() time.Duration {
			return minFetchDelay + time.Duration(rand.Int63n(int64(maxFetchDelay-minFetchDelay)))
		},
	}
}

// Discover resolves a free-text query to at most maxResults movie
// records. The store is consulted first; only when it holds fewer than
// cacheHitThreshold matches does the engine go online, probing
// year-suffixed slug candidates under the concurrency cap. New records
// are persisted before they are returned. An empty result is a valid
// answer, never an error.
func (e *Engine) Discover(ctx context.Context, query string, viewerID uint) ([]models.Movie, error) {
	if err := validation.ValidateQuery(query); err != nil {
		return nil, err
	}

	cached, err := e.store.FindByQuery(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}

	if len(cached) >= cacheHitThreshold {
		e.logger.Debug("query satisfied from store",
			slog.String("query", query), slog.Int("matches", len(cached)))
		return e.rank(ctx, cached, viewerID)
	}

	base := slug.SearchSlug(query)
	candidates := slug.Candidates(base)
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	known := make(map[string]bool, len(cached))
	for _, m := range cached {
		known[m.Slug] = true
	}

	var probes []string
	for _, c := range candidates {
		if !known[c] {
			probes = append(probes, c)
		}
	}

	fetched := e.runPipelines(ctx, probes)
	merged, err := e.merge(ctx, cached, fetched)
	if err != nil {
		return nil, err
	}

	return e.rank(ctx, merged, viewerID)
}

// SearchCatalog is the scrape-driven variant of Discover: candidate
// slugs come from the catalog's own search page instead of the year
// grid. Results are persisted and ranked identically.
func (e *Engine) SearchCatalog(ctx context.Context, query string, viewerID uint) ([]models.Movie, error) {
	if err := validation.ValidateQuery(query); err != nil {
		return nil, err
	}

	slugs, err := e.catalog.SearchSlugs(ctx, query)
	if err != nil {
		// The catalog being down means no scrape results, not a dead
		// query; the store may still answer.
		e.logger.Warn("catalog search failed", slog.String("query", query), slog.Any("error", err))
		slugs = nil
	}

	cached, err := e.store.FindByQuery(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(cached))
	for _, m := range cached {
		known[m.Slug] = true
	}

	var probes []string
	for _, s := range slugs {
		if !known[s] {
			probes = append(probes, s)
		}
	}

	fetched := e.runPipelines(ctx, probes)
	merged, err := e.merge(ctx, cached, fetched)
	if err != nil {
		return nil, err
	}

	return e.rank(ctx, merged, viewerID)
}

// runPipelines dispatches one fetch+extract+augment pipeline per slug,
// at most maxInFlight in flight, and joins them all before returning.
// A failed pipeline yields nil and never aborts its siblings.
func (e *Engine) runPipelines(ctx context.Context, slugs []string) []*models.Movie {
	results := make([]*models.Movie, len(slugs))

	var wg sync.WaitGroup
	for i, s := range slugs {
		wg.Add(1)
		go func(i int, s string) {
			defer wg.Done()

			e.permits <- struct{}{}
			defer func() { <-e.permits }()

			results[i] = e.fetchOne(ctx, s)
		}(i, s)
	}
	wg.Wait()

	return results
}

// fetchOne runs a single pipeline: pacing delay, page fetch, extract,
// augment, poster download. Every failure path returns nil.
func (e *Engine) fetchOne(ctx context.Context, movieSlug string) *models.Movie {
	// The pacing delay belongs to the orchestrator, applied once per
	// dispatched task. There are no retries to re-pace.
	e.sleep(e.delay())

	page, err := e.catalog.FilmPage(ctx, movieSlug)
	if err != nil {
		e.logger.Debug("fetch failed", slog.String("slug", movieSlug), slog.Any("error", err))
		return nil
	}

	movie := e.catalog.ExtractMovie(page, movieSlug)
	if movie == nil {
		e.logger.Debug("not a film page", slog.String("slug", movieSlug))
		return nil
	}

	// Augmentation is best-effort: the record survives without it.
	posterURL, votes, err := e.meta.Augment(ctx, movie.Title, movie.Year)
	if err != nil {
		e.logger.Debug("augmentation failed",
			slog.String("slug", movieSlug), slog.Any("error", err))
	} else {
		movie.PosterURL = posterURL
		movie.VoteCount = votes
	}

	if movie.PosterURL != "" {
		artifact, err := e.posters.DownloadAsDataURI(ctx, movie.PosterURL)
		if err != nil {
			e.logger.Debug("poster download failed",
				slog.String("slug", movieSlug), slog.Any("error", err))
		} else {
			movie.Poster = artifact
		}
	}

	return movie
}

// merge persists every new non-nil fetched record absent from the
// store, then unions store rows and fetched rows.
func (e *Engine) merge(ctx context.Context, cached []models.Movie, fetched []*models.Movie) ([]models.Movie, error) {
	merged := make([]models.Movie, 0, len(cached)+len(fetched))
	merged = append(merged, cached...)

	for _, movie := range fetched {
		if movie == nil {
			continue
		}
		exists, err := e.store.Exists(ctx, movie.Slug)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := e.store.Upsert(ctx, movie); err != nil {
				return nil, err
			}
		}
		merged = append(merged, *movie)
	}

	return merged, nil
}

// rank dedups by slug keeping first occurrence, orders by external
// vote count then year, truncates, and attaches viewer flags.
func (e *Engine) rank(ctx context.Context, movies []models.Movie, viewerID uint) ([]models.Movie, error) {
	seen := make(map[string]bool, len(movies))
	unique := make([]models.Movie, 0, len(movies))
	for _, m := range movies {
		if !seen[m.Slug] {
			seen[m.Slug] = true
			unique = append(unique, m)
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].VoteCount != unique[j].VoteCount {
			return unique[i].VoteCount > unique[j].VoteCount
		}
		return unique[i].Year > unique[j].Year
	})

	if len(unique) > maxResults {
		unique = unique[:maxResults]
	}

	if err := e.store.AttachViewerFlags(ctx, unique, viewerID); err != nil {
		return nil, err
	}
	return unique, nil
}

// SubmitRating records the viewer's personal rating, then folds it
// into the movie's community aggregate. The two writes are coupled but
// not transactional: if aggregation fails after the personal rating
// landed, the personal rating stays.
func (e *Engine) SubmitRating(ctx context.Context, viewerID uint, movieSlug string, rating int) error {
	if err := e.store.RecordRating(ctx, viewerID, movieSlug, rating); err != nil {
		return err
	}
	return e.store.AggregateRating(ctx, movieSlug, rating)
}

// SetWatched sets or clears the viewer's watched mark.
func (e *Engine) SetWatched(ctx context.Context, viewerID uint, movieSlug string, watched bool) error {
	if watched {
		return e.store.MarkWatched(ctx, viewerID, movieSlug)
	}
	return e.store.UnmarkWatched(ctx, viewerID, movieSlug)
}

// SetWatchListed sets or clears the movie's presence on the viewer's
// watch list.
func (e *Engine) SetWatchListed(ctx context.Context, viewerID uint, movieSlug string, listed bool) error {
	if listed {
		return e.store.AddToWatchList(ctx, viewerID, movieSlug)
	}
	return e.store.RemoveFromWatchList(ctx, viewerID, movieSlug)
}

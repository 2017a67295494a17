// Package store is the engine's durable record keeper: movies, users,
// ratings, watched marks and watch-list entries, all in one SQLite
// database behind GORM. It is the only owner of mutable shared state.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/movierec/movierec/lib/lock"
	"github.com/movierec/movierec/lib/slug"
	"github.com/movierec/movierec/models"
)

// aggregateLockTimeout bounds how long a rating write waits for the
// per-slug lock before giving up.
const aggregateLockTimeout = 5 * time.Second

// Store wraps the database with the engine's query surface.
type Store struct {
	db     *gorm.DB
	locks  *lock.FileLock
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		locks:  lock.NewFileLock(logger),
		logger: logger,
	}
}

// FindByQuery returns movies whose slug starts with the canonicalized
// query or whose title contains the raw query, newest first. Viewer
// flags are joined in when viewerID > 0.
func (s *Store) FindByQuery(ctx context.Context, text string, viewerID uint) ([]models.Movie, error) {
	searchSlug := slug.SearchSlug(text)

	var movies []models.Movie
	err := s.db.WithContext(ctx).
		Where("slug LIKE ? OR LOWER(title) LIKE ?",
			searchSlug+"%",
			"%"+strings.ToLower(text)+"%").
		Order("year DESC").
		Find(&movies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}

	if err := s.AttachViewerFlags(ctx, movies, viewerID); err != nil {
		return nil, err
	}
	return movies, nil
}

// Exists reports whether a movie with this slug is already stored.
func (s *Store) Exists(ctx context.Context, movieSlug string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Movie{}).
		Where("slug = ?", movieSlug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check movie existence: %w", err)
	}
	return count > 0, nil
}

// Upsert inserts the movie if its slug is not stored yet. Calling it
// twice for the same slug is a no-op: the insert-if-absent contract is
// the unique slug index plus ON CONFLICT DO NOTHING, so concurrent
// pipelines discovering the same slug cannot create a duplicate row.
func (s *Store) Upsert(ctx context.Context, movie *models.Movie) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).
		Create(movie).Error
	if err != nil {
		return fmt.Errorf("failed to upsert movie %q: %w", movie.Slug, err)
	}
	return nil
}

// BySlug returns one movie, or gorm.ErrRecordNotFound.
func (s *Store) BySlug(ctx context.Context, movieSlug string) (*models.Movie, error) {
	var movie models.Movie
	if err := s.db.WithContext(ctx).Where("slug = ?", movieSlug).First(&movie).Error; err != nil {
		return nil, err
	}
	return &movie, nil
}

// AttachViewerFlags fills the per-viewer fields on each movie in
// place. viewerID 0 means no viewer context; flags stay false.
func (s *Store) AttachViewerFlags(ctx context.Context, movies []models.Movie, viewerID uint) error {
	if viewerID == 0 || len(movies) == 0 {
		return nil
	}

	slugs := make([]string, len(movies))
	for i := range movies {
		slugs[i] = movies[i].Slug
	}

	watched, err := s.slugSet(ctx, &models.WatchedMovie{}, viewerID, slugs)
	if err != nil {
		return err
	}
	listed, err := s.slugSet(ctx, &models.WatchListEntry{}, viewerID, slugs)
	if err != nil {
		return err
	}

	var ratings []models.UserRating
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND slug IN ?", viewerID, slugs).
		Find(&ratings).Error; err != nil {
		return fmt.Errorf("failed to load viewer ratings: %w", err)
	}
	ratingBySlug := make(map[string]int, len(ratings))
	for _, r := range ratings {
		ratingBySlug[r.Slug] = r.Rating
	}

	for i := range movies {
		movies[i].IsWatched = watched[movies[i].Slug]
		movies[i].InWatchList = listed[movies[i].Slug]
		if r, ok := ratingBySlug[movies[i].Slug]; ok {
			rating := r
			movies[i].UserRating = &rating
		}
	}
	return nil
}

// slugSet returns the set of the viewer's slugs present in the given
// presence table.
func (s *Store) slugSet(ctx context.Context, model interface{}, viewerID uint, slugs []string) (map[string]bool, error) {
	var found []string
	if err := s.db.WithContext(ctx).Model(model).
		Where("user_id = ? AND slug IN ?", viewerID, slugs).
		Pluck("slug", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to load viewer flags: %w", err)
	}
	set := make(map[string]bool, len(found))
	for _, s := range found {
		set[s] = true
	}
	return set, nil
}

package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/movierec/movierec/models"
)

// MarkWatched records that the user has watched the movie. Repeated
// marks are no-ops.
func (s *Store) MarkWatched(ctx context.Context, userID uint, movieSlug string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.WatchedMovie{UserID: userID, Slug: movieSlug}).Error
	if err != nil {
		return fmt.Errorf("failed to mark watched: %w", err)
	}
	return nil
}

// UnmarkWatched removes the watched mark. Removing an absent mark is a
// no-op.
func (s *Store) UnmarkWatched(ctx context.Context, userID uint, movieSlug string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND slug = ?", userID, movieSlug).
		Delete(&models.WatchedMovie{}).Error
	if err != nil {
		return fmt.Errorf("failed to unmark watched: %w", err)
	}
	return nil
}

// IsWatched reports whether the user has watched the movie.
func (s *Store) IsWatched(ctx context.Context, userID uint, movieSlug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WatchedMovie{}).
		Where("user_id = ? AND slug = ?", userID, movieSlug).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check watched mark: %w", err)
	}
	return count > 0, nil
}

// WatchedCount returns how many movies the user has watched.
func (s *Store) WatchedCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WatchedMovie{}).
		Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count watched movies: %w", err)
	}
	return count, nil
}

// WatchedMovies returns the user's watched movies with viewer flags
// attached.
func (s *Store) WatchedMovies(ctx context.Context, userID uint) ([]models.Movie, error) {
	return s.joinMovies(ctx, "watched_movies", userID)
}

// AddToWatchList puts the movie on the user's watch list; repeated
// adds are no-ops. A watched movie may sit on the list too.
func (s *Store) AddToWatchList(ctx context.Context, userID uint, movieSlug string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.WatchListEntry{UserID: userID, Slug: movieSlug}).Error
	if err != nil {
		return fmt.Errorf("failed to add to watch list: %w", err)
	}
	return nil
}

// RemoveFromWatchList removes the movie from the user's watch list.
func (s *Store) RemoveFromWatchList(ctx context.Context, userID uint, movieSlug string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND slug = ?", userID, movieSlug).
		Delete(&models.WatchListEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove from watch list: %w", err)
	}
	return nil
}

// IsInWatchList reports whether the movie is on the user's watch list.
func (s *Store) IsInWatchList(ctx context.Context, userID uint, movieSlug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WatchListEntry{}).
		Where("user_id = ? AND slug = ?", userID, movieSlug).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check watch list: %w", err)
	}
	return count > 0, nil
}

// WatchListCount returns the size of the user's watch list.
func (s *Store) WatchListCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WatchListEntry{}).
		Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count watch list: %w", err)
	}
	return count, nil
}

// WatchListMovies returns the user's watch-listed movies with viewer
// flags attached.
func (s *Store) WatchListMovies(ctx context.Context, userID uint) ([]models.Movie, error) {
	return s.joinMovies(ctx, "watch_list_entries", userID)
}

// joinMovies loads full movie rows for one user's presence table,
// newest first.
func (s *Store) joinMovies(ctx context.Context, table string, userID uint) ([]models.Movie, error) {
	var movies []models.Movie
	err := s.db.WithContext(ctx).
		Joins(fmt.Sprintf("JOIN %s p ON p.slug = movies.slug AND p.user_id = ?", table), userID).
		Order("movies.year DESC").
		Find(&movies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	if err := s.AttachViewerFlags(ctx, movies, userID); err != nil {
		return nil, err
	}
	return movies, nil
}

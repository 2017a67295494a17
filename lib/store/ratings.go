package store

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/movierec/movierec/lib/validation"
	"github.com/movierec/movierec/models"
)

// RecordRating upserts the viewer's personal rating for a movie, last
// write wins.
func (s *Store) RecordRating(ctx context.Context, userID uint, movieSlug string, rating int) error {
	if err := validation.ValidateRating(rating); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "slug"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"rating":     rating,
				"updated_at": time.Now(),
			}),
		}).
		Create(&models.UserRating{UserID: userID, Slug: movieSlug, Rating: rating}).Error
	if err != nil {
		return fmt.Errorf("failed to record rating: %w", err)
	}
	return nil
}

// UserRatingFor returns the viewer's rating for a movie, or nil.
func (s *Store) UserRatingFor(ctx context.Context, userID uint, movieSlug string) (*int, error) {
	var row models.UserRating
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND slug = ?", userID, movieSlug).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rating: %w", err)
	}
	rating := row.Rating
	return &rating, nil
}

// RatingsCount returns how many movies the user has rated.
func (s *Store) RatingsCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserRating{}).
		Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return count, nil
}

// AggregateRating folds one new user rating into the movie's running
// community average: newRating = (rating*votes + new) / (votes+1).
// The read-modify-write is serialized per slug through the file lock;
// without it two raters landing together would lose a vote.
func (s *Store) AggregateRating(ctx context.Context, movieSlug string, userRating int) error {
	if err := validation.ValidateRating(userRating); err != nil {
		return err
	}

	acquired, err := s.locks.TryLock(ctx, "rating-"+movieSlug, aggregateLockTimeout)
	if err != nil {
		return fmt.Errorf("failed to acquire rating lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("rating lock for %q is busy", movieSlug)
	}
	defer func() {
		if err := s.locks.Unlock(ctx, "rating-"+movieSlug); err != nil {
			s.logger.Error("failed to release rating lock",
				slog.String("slug", movieSlug), slog.Any("error", err))
		}
	}()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var movie models.Movie
		if err := tx.Where("slug = ?", movieSlug).First(&movie).Error; err != nil {
			return fmt.Errorf("failed to load movie for aggregation: %w", err)
		}

		newCount := movie.VoteCount + 1
		newRating := (movie.Rating*float64(movie.VoteCount) + float64(userRating)) / float64(newCount)

		if err := tx.Model(&models.Movie{}).
			Where("slug = ?", movieSlug).
			Updates(map[string]interface{}{
				"vote_count": newCount,
				"rating":     newRating,
			}).Error; err != nil {
			return fmt.Errorf("failed to write aggregated rating: %w", err)
		}
		return nil
	})
}

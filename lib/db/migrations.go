package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/movierec/movierec/models"
	"gorm.io/gorm"
)

// RunMigrations brings the SQLite schema up to date and applies the
// pragmas and indexes the engine expects.
func RunMigrations(db *gorm.DB, logger *slog.Logger) error {
	ctx := context.Background()

	if err := enableSQLiteOptimizations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to enable SQLite optimizations: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Movie{},
		&models.User{},
		&models.UserRating{},
		&models.WatchedMovie{},
		&models.WatchListEntry{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := createAdditionalIndexes(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return nil
}

// enableSQLiteOptimizations enables SQLite-specific optimizations
func enableSQLiteOptimizations(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",    // Enable WAL mode for better concurrency
		"PRAGMA synchronous=NORMAL",  // Faster writes while maintaining safety
		"PRAGMA busy_timeout=5000",   // Wait instead of failing on a locked database
		"PRAGMA foreign_keys=ON",     // Enable foreign key constraints
		"PRAGMA temp_store=MEMORY",   // Store temporary tables in memory
		"PRAGMA optimize",            // Enable query optimization
	}

	for _, pragma := range optimizations {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.Warn("Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		}
	}

	return nil
}

// createAdditionalIndexes creates composite indexes for the common
// lookup paths: slug-prefix search ordered by year, and the per-user
// join tables.
func createAdditionalIndexes(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	additionalIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_movies_slug_year ON movies(slug, year)",
		"CREATE INDEX IF NOT EXISTS idx_movies_vote_count ON movies(vote_count)",
		"CREATE INDEX IF NOT EXISTS idx_user_ratings_user ON user_ratings(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_watched_movies_user ON watched_movies(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_watch_list_entries_user ON watch_list_entries(user_id)",
	}

	for _, indexSQL := range additionalIndexes {
		if err := db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
			logger.Warn("Failed to create index", slog.String("sql", indexSQL), slog.Any("error", err))
		}
	}

	return nil
}

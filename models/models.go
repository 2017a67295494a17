package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GenreList stores a movie's genres as a JSON array in a single text
// column. Order is preserved for display; dedup elsewhere ignores it.
type GenreList []string

func (g GenreList) Value() (driver.Value, error) {
	if len(g) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal genres: %w", err)
	}
	return string(b), nil
}

func (g *GenreList) Scan(value interface{}) error {
	if value == nil {
		*g = GenreList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported genre column type %T", value)
	}

	if len(data) == 0 {
		*g = GenreList{}
		return nil
	}
	if err := json.Unmarshal(data, g); err != nil {
		// A corrupt genre blob should not sink the whole row.
		*g = GenreList{}
	}
	return nil
}

// Movie is one film record. Slug is the canonical identity; a slug is
// never stored twice. The IsWatched/InWatchList/UserRating fields are
// per-viewer and joined in at query time, never persisted here.
type Movie struct {
	gorm.Model
	Slug          string    `gorm:"uniqueIndex" json:"slug"`
	Title         string    `gorm:"index" json:"title"`
	Year          int       `json:"year"`
	Description   string    `json:"description"`
	PosterURL     string    `json:"poster_url"`
	LetterboxdURL string    `json:"letterboxd_url"`
	Poster        string    `json:"poster,omitempty"` // data-URI encoded artifact, empty when unavailable
	Genres        GenreList `gorm:"type:text" json:"genres"`
	VoteCount     int       `json:"vote_count"`
	Rating        float64   `json:"rating"`

	IsWatched   bool `gorm:"-" json:"is_watched"`
	InWatchList bool `gorm:"-" json:"in_watch_list"`
	UserRating  *int `gorm:"-" json:"user_rating,omitempty"`
}

// User is a registered account. Accounts are never hard-deleted.
type User struct {
	gorm.Model
	Login        string `gorm:"uniqueIndex" json:"login"`
	DisplayName  string `json:"display_name"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	AvatarURL    string `json:"avatar_url"`
}

// UserRating is one user's 1-10 rating of one movie, last write wins.
// No soft delete: the unique pair must stay reusable after removal.
type UserRating struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_movie_rating" json:"user_id"`
	Slug      string    `gorm:"uniqueIndex:idx_user_movie_rating" json:"slug"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatchedMovie marks a movie as watched by a user. Presence is the
// whole payload.
type WatchedMovie struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_movie_watched" json:"user_id"`
	Slug      string    `gorm:"uniqueIndex:idx_user_movie_watched" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// WatchListEntry marks a movie as wanted by a user. A movie can be both
// watched and listed, read as "want to rewatch".
type WatchListEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_movie_watchlist" json:"user_id"`
	Slug      string    `gorm:"uniqueIndex:idx_user_movie_watchlist" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

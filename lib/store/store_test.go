package store

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/movierec/movierec/lib/db"
	"github.com/movierec/movierec/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.RunMigrations(gdb, log); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return New(gdb, log)
}

func TestUpsertIsInsertIfAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := models.Movie{Slug: "the-thing-1982", Title: "The Thing", Year: 1982, Rating: 8.2}
	if err := s.Upsert(ctx, &first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// A second record with the same slug must not replace the first.
	second := models.Movie{Slug: "the-thing-1982", Title: "The Thing (remake)", Year: 2011}
	if err := s.Upsert(ctx, &second); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := s.BySlug(ctx, "the-thing-1982")
	if err != nil {
		t.Fatalf("BySlug: %v", err)
	}
	if got.Title != "The Thing" || got.Year != 1982 {
		t.Errorf("stored row was overwritten: %+v", got)
	}

	var count int64
	if err := s.db.Model(&models.Movie{}).Where("slug = ?", "the-thing-1982").Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("slug stored %d times, want 1", count)
	}
}

func TestFindByQueryMatchesSlugPrefixAndTitle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, m := range []models.Movie{
		{Slug: "heat-1995", Title: "Heat", Year: 1995},
		{Slug: "heat-2023", Title: "Heat", Year: 2023},
		{Slug: "collateral-2004", Title: "Collateral Heat Wave", Year: 2004},
		{Slug: "speed-1994", Title: "Speed", Year: 1994},
	} {
		movie := m
		if err := s.Upsert(ctx, &movie); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.FindByQuery(ctx, "Heat", 0)
	if err != nil {
		t.Fatalf("FindByQuery: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d matches, want 3: %+v", len(got), got)
	}
	// Newest first.
	if got[0].Slug != "heat-2023" {
		t.Errorf("first match = %q, want heat-2023", got[0].Slug)
	}
	for _, m := range got {
		if m.Slug == "speed-1994" {
			t.Error("unrelated movie matched the query")
		}
	}
}

func TestFindByQueryStripsLeadingArticle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	movie := models.Movie{Slug: "matrix-1999", Title: "Matrix", Year: 1999}
	if err := s.Upsert(ctx, &movie); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindByQuery(ctx, "The Matrix", 0)
	if err != nil {
		t.Fatalf("FindByQuery: %v", err)
	}
	if len(got) != 1 || got[0].Slug != "matrix-1999" {
		t.Errorf("article-stripped lookup failed: %+v", got)
	}
}

func TestAggregateRatingMath(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	movie := models.Movie{Slug: "whiplash-2014", Title: "Whiplash", Year: 2014}
	if err := s.Upsert(ctx, &movie); err != nil {
		t.Fatal(err)
	}

	if err := s.AggregateRating(ctx, "whiplash-2014", 8); err != nil {
		t.Fatalf("AggregateRating: %v", err)
	}
	got, err := s.BySlug(ctx, "whiplash-2014")
	if err != nil {
		t.Fatal(err)
	}
	if got.VoteCount != 1 || got.Rating != 8.0 {
		t.Errorf("after 1 vote: count=%d rating=%v, want 1/8.0", got.VoteCount, got.Rating)
	}

	if err := s.AggregateRating(ctx, "whiplash-2014", 4); err != nil {
		t.Fatalf("AggregateRating: %v", err)
	}
	got, err = s.BySlug(ctx, "whiplash-2014")
	if err != nil {
		t.Fatal(err)
	}
	if got.VoteCount != 2 || got.Rating != 6.0 {
		t.Errorf("after 2 votes: count=%d rating=%v, want 2/6.0", got.VoteCount, got.Rating)
	}
}

func TestAggregateRatingUnknownSlug(t *testing.T) {
	s := testStore(t)
	if err := s.AggregateRating(context.Background(), "no-such-movie", 5); err == nil {
		t.Error("expected an error for an unknown slug")
	}
}

func TestRecordRatingLastWriteWins(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.RecordRating(ctx, 1, "dune-2021", 6); err != nil {
		t.Fatalf("RecordRating: %v", err)
	}
	if err := s.RecordRating(ctx, 1, "dune-2021", 9); err != nil {
		t.Fatalf("RecordRating update: %v", err)
	}

	got, err := s.UserRatingFor(ctx, 1, "dune-2021")
	if err != nil {
		t.Fatalf("UserRatingFor: %v", err)
	}
	if got == nil || *got != 9 {
		t.Errorf("rating = %v, want 9", got)
	}

	count, err := s.RatingsCount(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("ratings count = %d, want 1", count)
	}
}

func TestRecordRatingRejectsOutOfRange(t *testing.T) {
	s := testStore(t)
	for _, bad := range []int{0, 11} {
		if err := s.RecordRating(context.Background(), 1, "dune-2021", bad); err == nil {
			t.Errorf("rating %d accepted, want error", bad)
		}
	}
}

func TestWatchedMarksAreIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	movie := models.Movie{Slug: "alien-1979", Title: "Alien", Year: 1979}
	if err := s.Upsert(ctx, &movie); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := s.MarkWatched(ctx, 1, "alien-1979"); err != nil {
			t.Fatalf("MarkWatched: %v", err)
		}
	}

	count, err := s.WatchedCount(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("watched count = %d, want 1", count)
	}

	if err := s.UnmarkWatched(ctx, 1, "alien-1979"); err != nil {
		t.Fatalf("UnmarkWatched: %v", err)
	}
	watched, err := s.IsWatched(ctx, 1, "alien-1979")
	if err != nil {
		t.Fatal(err)
	}
	if watched {
		t.Error("still watched after unmark")
	}

	// The unique pair must be reusable after removal.
	if err := s.MarkWatched(ctx, 1, "alien-1979"); err != nil {
		t.Fatalf("re-mark after unmark: %v", err)
	}
	watched, err = s.IsWatched(ctx, 1, "alien-1979")
	if err != nil {
		t.Fatal(err)
	}
	if !watched {
		t.Error("re-mark after unmark did not stick")
	}
}

func TestWatchListRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, m := range []models.Movie{
		{Slug: "her-2013", Title: "Her", Year: 2013},
		{Slug: "ex-machina-2014", Title: "Ex Machina", Year: 2014},
	} {
		movie := m
		if err := s.Upsert(ctx, &movie); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.AddToWatchList(ctx, 1, "her-2013"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToWatchList(ctx, 1, "ex-machina-2014"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveFromWatchList(ctx, 1, "her-2013"); err != nil {
		t.Fatal(err)
	}

	got, err := s.WatchListMovies(ctx, 1)
	if err != nil {
		t.Fatalf("WatchListMovies: %v", err)
	}
	if len(got) != 1 || got[0].Slug != "ex-machina-2014" {
		t.Errorf("watch list = %+v, want just ex-machina-2014", got)
	}
	if !got[0].InWatchList {
		t.Error("viewer flag not attached on watch list load")
	}
}

func TestAttachViewerFlags(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, m := range []models.Movie{
		{Slug: "seven-1995", Title: "Seven", Year: 1995},
		{Slug: "zodiac-2007", Title: "Zodiac", Year: 2007},
	} {
		movie := m
		if err := s.Upsert(ctx, &movie); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.MarkWatched(ctx, 3, "seven-1995"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRating(ctx, 3, "seven-1995", 10); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindByQuery(ctx, "seven", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1", len(got))
	}
	if !got[0].IsWatched || got[0].InWatchList {
		t.Errorf("flags = watched:%v listed:%v, want true/false", got[0].IsWatched, got[0].InWatchList)
	}
	if got[0].UserRating == nil || *got[0].UserRating != 10 {
		t.Errorf("user rating = %v, want 10", got[0].UserRating)
	}

	// viewerID 0 means no viewer context.
	anon, err := s.FindByQuery(ctx, "seven", 0)
	if err != nil {
		t.Fatal(err)
	}
	if anon[0].IsWatched || anon[0].UserRating != nil {
		t.Error("anonymous query leaked viewer flags")
	}
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "alice", "Alice", "alice@example.com", "hunter22", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 {
		t.Error("created user has no id")
	}
	if user.PasswordHash == "hunter22" {
		t.Error("password stored in the clear")
	}

	got, err := s.Authenticate(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("authenticated as user %d, want %d", got.ID, user.ID)
	}

	if _, err := s.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("wrong password: err = %v, want ErrBadCredentials", err)
	}
	if _, err := s.Authenticate(ctx, "nobody", "hunter22"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("unknown login: err = %v, want ErrBadCredentials", err)
	}
}

func TestCreateUserDuplicates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "bob", "Bob", "bob@example.com", "secret99", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := s.CreateUser(ctx, "bob", "Bobby", "other@example.com", "secret99", ""); !errors.Is(err, ErrLoginTaken) {
		t.Errorf("duplicate login: err = %v, want ErrLoginTaken", err)
	}
	if _, err := s.CreateUser(ctx, "robert", "Robert", "bob@example.com", "secret99", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: err = %v, want ErrEmailTaken", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "carol", "Carol", "carol@example.com", "secret99", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateProfile(ctx, user.ID, "Caroline", "caroline@example.com", "https://img.example.com/c.png"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	got, err := s.UserByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DisplayName != "Caroline" || got.Email != "caroline@example.com" {
		t.Errorf("profile not updated: %+v", got)
	}
}

func TestGenreListSurvivesRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	movie := models.Movie{
		Slug:   "brazil-1985",
		Title:  "Brazil",
		Year:   1985,
		Genres: models.GenreList{"Comedy", "Science Fiction"},
	}
	if err := s.Upsert(ctx, &movie); err != nil {
		t.Fatal(err)
	}

	got, err := s.BySlug(ctx, "brazil-1985")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Comedy" {
		t.Errorf("genres = %v, want [Comedy Science Fiction]", got.Genres)
	}
}

package letterboxd

import (
	"io"
	"log/slog"
	"testing"
)

func testClient() *Client {
	return NewClient("https://letterboxd.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const fullPage = `<html><body>
<section>
  <h1><span class="name js-widont prettify">The Matrix</span></h1>
  <span class="releasedate"><a href="/films/year/1999/">1999</a></span>
</section>
<div class="truncate"><p>Set in the 22nd century, it&#039;s about a hacker &amp; a war.</p></div>
<section>
  <h3><span>Genres</span></h3>
  <div class="text-sluglist capitalize">
    <a class="text-slug" href="/films/genre/action/">Action</a>
    <a class="text-slug" href="/films/genre/science-fiction/">Science Fiction</a>
  </div>
</section>
</body></html>`

const titleOnlyPage = `<html><body>
<span class="name js-widont prettify">Untitled Project</span>
</body></html>`

const notAFilmPage = `<html><body><h1>Page not found</h1></body></html>`

func TestExtractMovie(t *testing.T) {
	c := testClient()

	movie := c.ExtractMovie(fullPage, "the-matrix")
	if movie == nil {
		t.Fatal("expected a record from a full film page")
	}
	if movie.Title != "The Matrix" {
		t.Errorf("title = %q", movie.Title)
	}
	if movie.Year != 1999 {
		t.Errorf("year = %d, want 1999", movie.Year)
	}
	if movie.Slug != "the-matrix" {
		t.Errorf("slug = %q", movie.Slug)
	}
	if movie.LetterboxdURL != "https://letterboxd.com/film/the-matrix/" {
		t.Errorf("catalog url = %q", movie.LetterboxdURL)
	}
	if want := "Set in the 22nd century, it's about a hacker & a war."; movie.Description != want {
		t.Errorf("description = %q, want %q", movie.Description, want)
	}
	if len(movie.Genres) != 2 || movie.Genres[0] != "Action" || movie.Genres[1] != "Science Fiction" {
		t.Errorf("genres = %v", movie.Genres)
	}
}

func TestExtractMovieTitleOnly(t *testing.T) {
	c := testClient()

	movie := c.ExtractMovie(titleOnlyPage, "untitled-project")
	if movie == nil {
		t.Fatal("a title-only page is still a film page")
	}
	if movie.Year != 0 {
		t.Errorf("year = %d, want 0", movie.Year)
	}
	if len(movie.Genres) != 0 {
		t.Errorf("genres = %v, want empty", movie.Genres)
	}
	if movie.Description != "" {
		t.Errorf("description = %q, want empty", movie.Description)
	}
}

func TestExtractMovieNoTitleAnchor(t *testing.T) {
	c := testClient()

	if movie := c.ExtractMovie(notAFilmPage, "nope"); movie != nil {
		t.Fatalf("expected nil for a page without a title anchor, got %+v", movie)
	}
	if movie := c.ExtractMovie("", "empty"); movie != nil {
		t.Fatalf("expected nil for an empty page, got %+v", movie)
	}
}

func TestSlugFromHref(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/film/the-matrix/", "the-matrix"},
		{"https://letterboxd.com/film/dune-2021/", "dune-2021"},
		{"/film/dune-2021/reviews/", "dune-2021"},
		{"/lists/best-of/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := slugFromHref(tt.href); got != tt.want {
			t.Errorf("slugFromHref(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

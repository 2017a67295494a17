// Package slug converts movie titles to the URL-safe identifiers the
// catalog site uses, and guesses year-suffixed variants of them.
package slug

import (
	"fmt"
	"strings"
)

// keyYears is the fixed probe grid for year-suffixed slugs: recent
// years first, then decades that dominate search traffic.
var keyYears = []int{
	2024, 2023, 2022, 2021, 2020,
	2019, 2018, 2017, 2016, 2015,
	2012, 2010, 2008, 2005, 2000,
	1999, 1998, 1995, 1990,
	1980, 1982, 1970, 1960, 1950,
}

var articles = []string{"the ", "a ", "an "}

var punctReplacer = strings.NewReplacer(
	":", "",
	"'", "",
	"\"", "",
	"!", "",
	"?", "",
	".", "",
	",", "",
	"&", "and",
)

// Slugify is the pure conversion variant: it never strips leading
// articles, so "The Matrix" keeps its "the-". Total over any input;
// an empty title yields an empty slug. Applying it to an already
// canonical slug returns the slug unchanged.
func Slugify(title string) string {
	if title == "" {
		return ""
	}

	// Whitespace runs collapse to single hyphens before punctuation
	// is dropped, so "Fast & Furious" becomes "fast-and-furious".
	s := strings.ToLower(strings.TrimSpace(title))
	s = strings.Join(strings.Fields(s), "-")
	s = punctReplacer.Replace(s)

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	return strings.Trim(s, "-")
}

// SearchSlug is the store-lookup variant: one leading article is
// stripped before conversion, matching how catalog slugs are usually
// minted ("The Matrix" -> "matrix"). Only the first matching article
// goes; "the the" loses a single "the".
func SearchSlug(title string) string {
	clean := strings.TrimSpace(title)
	lower := strings.ToLower(clean)
	for _, article := range articles {
		if strings.HasPrefix(lower, article) {
			clean = clean[len(article):]
			break
		}
	}
	return Slugify(clean)
}

// Candidates returns base itself followed by base-<year> for every
// probe year, duplicates removed preserving first occurrence. Order is
// fetch priority, nothing more.
func Candidates(base string) []string {
	out := make([]string, 0, len(keyYears)+1)
	seen := make(map[string]bool, len(keyYears)+1)

	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(base)
	for _, year := range keyYears {
		add(fmt.Sprintf("%s-%d", base, year))
	}
	return out
}

package letterboxd

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/movierec/movierec/models"
)

// ExtractMovie parses one film page into a movie record. It is pure
// with respect to the page text. The title element is the validity
// signal: without it the page is not a film page and the result is
// nil. Year, synopsis and genres degrade to zero values when their
// anchors are missing.
func (c *Client) ExtractMovie(page, slug string) *models.Movie {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	title := textContent(findByClasses(doc, "span", "name", "js-widont", "prettify"))
	if strings.TrimSpace(title) == "" {
		return nil
	}

	year := 0
	if release := findByClasses(doc, "span", "releasedate"); release != nil {
		if link := findElement(release, "a"); link != nil {
			if y, err := strconv.Atoi(strings.TrimSpace(textContent(link))); err == nil {
				year = y
			}
		}
	}

	description := ""
	if truncate := findByClasses(doc, "div", "truncate"); truncate != nil {
		if p := findElement(truncate, "p"); p != nil {
			// html.Parse already decodes text entities, so the
			// synopsis needs only trimming here.
			description = strings.TrimSpace(textContent(p))
		}
	}

	return &models.Movie{
		Slug:          slug,
		Title:         strings.TrimSpace(title),
		Year:          year,
		Description:   description,
		LetterboxdURL: c.FilmURL(slug),
		Genres:        extractGenres(doc),
	}
}

// extractGenres finds the genre slug list that follows the "Genres"
// heading and collects its link texts in page order.
func extractGenres(doc *html.Node) models.GenreList {
	genres := models.GenreList{}

	heading := findHeading(doc, "Genres")
	if heading == nil {
		return genres
	}

	for sib := heading.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode {
			continue
		}
		if sib.Data == "div" && hasClass(sib, "text-sluglist") {
			for _, link := range findAllByClasses(sib, "a", "text-slug") {
				if name := strings.TrimSpace(textContent(link)); name != "" {
					genres = append(genres, name)
				}
			}
			break
		}
		// Another heading before the slug list means the section had
		// no genre links.
		if sib.Data == "h3" {
			break
		}
	}

	return genres
}

// findHeading returns the first h3 whose text content equals label.
func findHeading(n *html.Node, label string) *html.Node {
	if n.Type == html.ElementNode && n.Data == "h3" &&
		strings.TrimSpace(textContent(n)) == label {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findHeading(child, label); found != nil {
			return found
		}
	}
	return nil
}

// findElement returns the first descendant element with the given tag.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// findByClasses returns the first descendant element with the given
// tag carrying all of the given classes.
func findByClasses(n *html.Node, tag string, classes ...string) *html.Node {
	if matchesClasses(n, tag, classes) {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByClasses(child, tag, classes...); found != nil {
			return found
		}
	}
	return nil
}

// findAllByClasses returns every descendant element with the given tag
// carrying all of the given classes, in document order.
func findAllByClasses(n *html.Node, tag string, classes ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesClasses(n, tag, classes) {
			out = append(out, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return out
}

func matchesClasses(n *html.Node, tag string, classes []string) bool {
	if n.Type != html.ElementNode || n.Data != tag {
		return false
	}
	for _, class := range classes {
		if !hasClass(n, class) {
			return false
		}
	}
	return true
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

// textContent concatenates all text nodes under n. Nil-safe.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

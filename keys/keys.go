// Package keys builds the structured cache key strings used by the book
// catalog, and the glob patterns that invalidate them in bulk.
//
// Keys are flat colon-delimited strings of the form
//
//	app:book:find:id=42:origin=api
//
// Every builder here is a pure function: the same inputs always produce the
// same key, so a writer and a later invalidator agree on the address
// without coordination. Patterns share the key's prefix and end in a "*"
// wildcard, covering every parameter variant of that query shape.
//
// Free-text search queries are normalized (lowercased, trimmed, inner
// whitespace collapsed) and content-hashed, so arbitrarily long or
// special-character query text maps to a fixed-width token that is safe in
// filenames and redis keys alike. Normalization is deliberate: "Ruby" and
// "  ruby " address the same cache entry.
package keys

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// Namespace prefixes every key.
	Namespace = "app"
	// Separator delimits key segments.
	Separator = ":"
	// originSegment marks keys minted by the API layer. It is the terminal
	// segment of every concrete key.
	originSegment = "origin=api"
)

// Param is one name=value key segment.
type Param struct {
	Name  string
	Value string
}

// P builds a Param, formatting value with fmt.Sprint.
func P(name string, value any) Param {
	return Param{Name: name, Value: fmt.Sprint(value)}
}

// Key builds a concrete cache key for one query shape:
// app:<entity>:<op>:<name>=<value>...:origin=api.
func Key(entity, op string, params ...Param) string {
	parts := make([]string, 0, len(params)+4)
	parts = append(parts, Namespace, entity, op)
	for _, p := range params {
		parts = append(parts, p.Name+"="+p.Value)
	}
	parts = append(parts, originSegment)
	return strings.Join(parts, Separator)
}

// Pattern builds a glob matching every variant of a query shape. Fixed
// params may be given to narrow the match; the trailing "*" covers the
// remaining segments including the origin marker.
func Pattern(entity, op string, params ...Param) string {
	parts := make([]string, 0, len(params)+4)
	parts = append(parts, Namespace, entity, op)
	for _, p := range params {
		parts = append(parts, p.Name+"="+p.Value)
	}
	parts = append(parts, "*")
	return strings.Join(parts, Separator)
}

// NormalizeQuery canonicalizes free-text query input: trimmed, lowercased,
// runs of whitespace collapsed to single spaces.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// HashQuery returns a fixed-width hex digest of the normalized query.
func HashQuery(query string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(NormalizeQuery(query)))
}

// Book addresses a single book looked up by id.
func Book(id int64) string {
	return Key("book", "find", P("id", id))
}

// BookList addresses one page of the paginated book listing.
func BookList(page, perPage int) string {
	return Key("book", "list", P("page", page), P("per_page", perPage))
}

// BookListPattern matches every cached page of the book listing.
func BookListPattern() string {
	return Pattern("book", "list")
}

// BookSearch addresses the results of a free-text book search.
func BookSearch(query string) string {
	return Key("book", "search", P("q", HashQuery(query)))
}

// BookSearchPattern matches every cached search result.
func BookSearchPattern() string {
	return Pattern("book", "search")
}

// BooksByGenre addresses the books filtered to one genre.
func BooksByGenre(genre string) string {
	return Key("book", "genre", P("genre", NormalizeQuery(genre)))
}

// BooksByGenrePattern matches every cached genre filter.
func BooksByGenrePattern() string {
	return Pattern("book", "genre")
}

// AllBooksPattern matches every book-related key.
func AllBooksPattern() string {
	return strings.Join([]string{Namespace, "book", "*"}, Separator)
}

// Review addresses a single review looked up by id.
func Review(id int64) string {
	return Key("review", "find", P("id", id))
}

// ReviewsByBook addresses one page of a book's reviews.
func ReviewsByBook(bookID int64, page, perPage int) string {
	return Key("review", "by_book", P("book_id", bookID), P("page", page), P("per_page", perPage))
}

// ReviewsByBookPattern matches every cached page of one book's reviews.
func ReviewsByBookPattern(bookID int64) string {
	return Pattern("review", "by_book", P("book_id", bookID))
}

// AllReviewsPattern matches every review-related key.
func AllReviewsPattern() string {
	return strings.Join([]string{Namespace, "review", "*"}, Separator)
}

// AllPattern matches every key in the namespace.
func AllPattern() string {
	return Namespace + Separator + "*"
}

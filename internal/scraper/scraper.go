// Package scraper looks up book candidates in external catalogs. The
// lookup is read-only; selecting a candidate happens in the caller.
package scraper

import (
	"context"
	"errors"
)

// MaxResults caps every catalog search.
const MaxResults = 5

// PlaceholderCover is the sentinel used when a catalog has no cover image.
const PlaceholderCover = "https://via.placeholder.com/128x190?text=No+Cover"

// Candidate is one catalog search result, ready to prefill a creation
// draft. TotalPages is 0 when the catalog doesn't know it.
type Candidate struct {
	ID         string
	Title      string
	Author     string
	Cover      string
	Category   string
	TotalPages int
}

// ErrNoResults distinguishes an empty result from a transport failure; the
// two get different user messages.
var ErrNoResults = errors.New("no books found")

// Catalog is a searchable external source of candidates.
type Catalog interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

package scraper

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrSuperseded is returned for a search whose response arrived after a
// newer search had already started. The caller should drop the result.
var ErrSuperseded = errors.New("search superseded by a newer one")

// Session guards a sequence of searches against the slow-response race: a
// slow first request must not overwrite the results of a faster second
// one. Each search takes a sequence number; only the latest may deliver.
type Session struct {
	catalog Catalog
	seq     atomic.Uint64
}

func NewSession(catalog Catalog) *Session {
	return &Session{catalog: catalog}
}

// Search runs the catalog search and delivers its result only if no newer
// search has started in the meantime.
func (s *Session) Search(ctx context.Context, query string) ([]Candidate, error) {
	seq := s.seq.Add(1)

	candidates, err := s.catalog.Search(ctx, query)
	if s.seq.Load() != seq {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

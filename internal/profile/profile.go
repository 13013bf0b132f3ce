// Package profile holds the reader's profile, shown by the profile page
// and consumed by nothing else.
package profile

import (
	"context"

	"github.com/erwar/readora/internal/book"
)

// Profile is the reader's display identity. Avatar is a data-URL-encoded
// image or empty. Genre is one of the fixed category list or empty.
type Profile struct {
	Username string
	Avatar   string
	Genre    string
}

// Store persists the profile fields.
type Store interface {
	LoadProfile(ctx context.Context) (Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
	ResetProfile(ctx context.Context) error
}

func ValidGenre(g string) bool {
	return g == "" || book.ValidCategory(g)
}

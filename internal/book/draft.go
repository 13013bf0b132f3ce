package book

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Draft holds the fields a caller supplies when creating a book. Everything
// else (id, page marker, log, flags) is assigned at creation time.
type Draft struct {
	Title      string `validate:"required"`
	Author     string `validate:"required"`
	Cover      string
	Category   string `validate:"required"`
	TotalPages int    `validate:"gt=0"`
	StartedOn  time.Time
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects a draft before any state changes. Manual entry must use
// one of the fixed categories; catalog results may carry their own.
func (d Draft) Validate(fromCatalog bool) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid book: %w", err)
	}
	if !fromCatalog && !ValidCategory(d.Category) {
		return fmt.Errorf("invalid book: unknown category %q", d.Category)
	}
	return nil
}

// build assembles a new record from the draft, applying creation defaults.
// The id is assigned by the repository on create.
func (d Draft) build(today time.Time) Book {
	started := d.StartedOn
	if started.IsZero() {
		started = DateOf(today)
	} else {
		started = DateOf(started)
	}
	return Book{
		Title:       d.Title,
		Author:      d.Author,
		Cover:       d.Cover,
		Category:    d.Category,
		TotalPages:  d.TotalPages,
		CurrentPage: 0,
		StartedOn:   started,
		IsFavorite:  false,
		DailyLog:    nil,
	}
}

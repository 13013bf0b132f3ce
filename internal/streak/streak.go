// Package streak tracks consecutive days of reading activity.
package streak

import (
	"context"
	"time"
)

// State is the process-wide streak counter. LastActive is a calendar date;
// the zero time means no activity has ever been recorded.
type State struct {
	LastActive time.Time
	Current    int
}

// Store persists streak state independently of the book collection.
type Store interface {
	LoadStreak(ctx context.Context) (State, error)
	SaveStreak(ctx context.Context, s State) error
}

// Record marks today as active and returns the new state. Repeated calls
// within the same calendar day are no-ops, so a day of activity counts
// once. A gap of exactly one day extends the streak; anything longer, or
// no prior activity, restarts it at 1.
func Record(s State, today time.Time) State {
	today = dateOf(today)
	if s.LastActive.Equal(today) {
		return s
	}
	if !s.LastActive.IsZero() && s.LastActive.AddDate(0, 0, 1).Equal(today) {
		s.Current++
	} else {
		s.Current = 1
	}
	s.LastActive = today
	return s
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

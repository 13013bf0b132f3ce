package book

import (
	"errors"
	"math"
	"time"
)

// ErrNoChange is returned when a progress save lands on the page the book
// is already on. The caller reports it; nothing is mutated or logged.
var ErrNoChange = errors.New("no change in pages")

// ErrPageOutOfRange is returned when the requested page falls outside
// [0, TotalPages]. Callers are expected to clamp before saving; this guards
// the invariant anyway.
var ErrPageOutOfRange = errors.New("page out of range")

// ProgressPercent returns the rounded completion percentage in [0, 100].
func ProgressPercent(b Book) int {
	if b.TotalPages <= 0 {
		return 0
	}
	return int(math.Round(float64(b.CurrentPage) / float64(b.TotalPages) * 100))
}

// ApplyProgressUpdate moves the page marker to newPage and returns the
// updated record. It re-derives FinishedOn: reaching the last page stamps
// today, regressing below it clears the stamp. One log entry is appended
// per save, carrying the signed page delta.
func ApplyProgressUpdate(b Book, newPage int, now time.Time) (Book, error) {
	if newPage < 0 || newPage > b.TotalPages {
		return b, ErrPageOutOfRange
	}
	if newPage == b.CurrentPage {
		return b, ErrNoChange
	}

	delta := newPage - b.CurrentPage
	b.CurrentPage = newPage

	switch {
	case newPage == b.TotalPages && b.TotalPages > 0 && !b.Finished():
		b.FinishedOn = DateOf(now)
	case newPage < b.TotalPages && b.Finished():
		b.FinishedOn = time.Time{}
	}

	b.DailyLog = append(b.DailyLog, LogEntry{
		Date:      DateOf(now),
		PagesRead: delta,
		Timestamp: now,
	})
	return b, nil
}

// SetDeadline replaces the deadline. A zero time clears it. Past dates are
// accepted.
func SetDeadline(b Book, deadline time.Time) Book {
	if deadline.IsZero() {
		b.Deadline = time.Time{}
	} else {
		b.Deadline = DateOf(deadline)
	}
	return b
}

// ResetProgress zeroes the page marker, clears the completion date and
// empties the reading log. The deadline is kept.
func ResetProgress(b Book) Book {
	b.CurrentPage = 0
	b.FinishedOn = time.Time{}
	b.DailyLog = nil
	return b
}

// DeadlineState classifies a book against its deadline.
type DeadlineState string

const (
	DeadlineNone      DeadlineState = "none"
	DeadlineSucceeded DeadlineState = "succeeded" // finished on or before the deadline
	DeadlineMissed    DeadlineState = "missed"    // finished after the deadline
	DeadlineOverdue   DeadlineState = "overdue"   // unfinished, deadline passed
	DeadlineOnTrack   DeadlineState = "on_track"  // unfinished, deadline ahead
)

// DeadlineStatus is the evaluated deadline state. DaysLeft is meaningful
// only when State is DeadlineOnTrack.
type DeadlineStatus struct {
	State    DeadlineState
	DaysLeft int
}

// EvaluateDeadline classifies the book's deadline as of today.
func EvaluateDeadline(b Book, today time.Time) DeadlineStatus {
	if b.Deadline.IsZero() {
		return DeadlineStatus{State: DeadlineNone}
	}
	today = DateOf(today)
	if b.Finished() {
		if !DateOf(b.FinishedOn).After(b.Deadline) {
			return DeadlineStatus{State: DeadlineSucceeded}
		}
		return DeadlineStatus{State: DeadlineMissed}
	}
	if today.After(b.Deadline) {
		return DeadlineStatus{State: DeadlineOverdue}
	}
	return DeadlineStatus{State: DeadlineOnTrack, DaysLeft: DaysBetween(today, b.Deadline)}
}

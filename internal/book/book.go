package book

import "time"

// Book is one tracked book. Optional dates (StartedOn, FinishedOn,
// Deadline) use the zero time.Time for "absent".
type Book struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Cover       string     `json:"cover,omitempty"` // image URL, may be empty
	Category    string     `json:"category"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	StartedOn   time.Time  `json:"startedOn,omitempty"`
	FinishedOn  time.Time  `json:"finishedOn,omitempty"`
	Deadline    time.Time  `json:"deadline,omitempty"`
	IsFavorite  bool       `json:"isFavorite"`
	DailyLog    []LogEntry `json:"dailyLog"`
}

// LogEntry records one progress save. PagesRead is signed: negative means
// the page marker moved backward. Entries are append-only; only a whole-log
// reset removes them.
type LogEntry struct {
	Date      time.Time `json:"date"`
	PagesRead int       `json:"pagesRead"`
	Timestamp time.Time `json:"timestamp"`
}

// Finished reports whether the book has a completion date.
func (b Book) Finished() bool {
	return !b.FinishedOn.IsZero()
}

// Categories is the fixed set offered for manual entry. Books created from
// a catalog search may carry a free-form category outside this list.
var Categories = []string{
	"Fiction",
	"Non-Fiction",
	"Science Fiction",
	"Fantasy",
	"Mystery",
	"Thriller",
	"Biography",
	"History",
	"Self-Help",
	"Dystopian",
	"Romance",
	"Horror",
}

func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

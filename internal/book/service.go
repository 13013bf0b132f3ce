package book

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erwar/readora/internal/streak"
)

// Repository is the durable store for the book collection. Lookups for an
// unknown id return (nil, nil); mutations of an unknown id are no-ops.
type Repository interface {
	Create(ctx context.Context, b *Book) error
	GetByID(ctx context.Context, id int64) (*Book, error)
	GetAll(ctx context.Context) ([]Book, error)
	GetFavorites(ctx context.Context) ([]Book, error)
	GetByCategory(ctx context.Context, category string) ([]Book, error)
	Update(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id int64) error
	ToggleFavorite(ctx context.Context, id int64) error
}

// GoalFlagStore keeps the per-book goal-form visibility flag. The flag is
// presentation state; the core only stores it and discards it with the book.
type GoalFlagStore interface {
	SetGoalFormVisible(ctx context.Context, id int64, visible bool) error
	GoalFormVisible(ctx context.Context, id int64) (bool, error)
	DeleteGoalFormFlag(ctx context.Context, id int64) error
}

// Service is the single owner of the book collection. Every mutation
// persists before returning. Only SaveProgress records daily activity;
// deadline edits, favorite toggles and resets deliberately do not.
type Service struct {
	repo    Repository
	flags   GoalFlagStore
	streaks streak.Store
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, flags GoalFlagStore, streaks streak.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		flags:   flags,
		streaks: streaks,
		logger:  logger,
		now:     time.Now,
	}
}

// Add validates the draft and creates the book with its creation defaults:
// page zero, empty log, not a favorite, no deadline, started today unless
// the draft says otherwise.
func (s *Service) Add(ctx context.Context, d Draft, fromCatalog bool) (*Book, error) {
	if err := d.Validate(fromCatalog); err != nil {
		return nil, err
	}

	b := d.build(s.now())
	if err := s.repo.Create(ctx, &b); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("book added", "id", b.ID, "title", b.Title)
	return &b, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Book, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the collection most-recent-first.
func (s *Service) List(ctx context.Context) ([]Book, error) {
	return s.repo.GetAll(ctx)
}

func (s *Service) ListFavorites(ctx context.Context) ([]Book, error) {
	return s.repo.GetFavorites(ctx)
}

func (s *Service) ListByCategory(ctx context.Context, category string) ([]Book, error) {
	return s.repo.GetByCategory(ctx, category)
}

// Update replaces the record whose id matches; unknown ids are a no-op.
func (s *Service) Update(ctx context.Context, b *Book) error {
	if err := s.repo.Update(ctx, b); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// Remove deletes the book and its goal-form flag. Unknown ids are a no-op.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if err := s.flags.DeleteGoalFormFlag(ctx, id); err != nil {
		return fmt.Errorf("delete goal flag: %w", err)
	}
	s.logger.Info("book removed", "id", id)
	return nil
}

func (s *Service) ToggleFavorite(ctx context.Context, id int64) error {
	if err := s.repo.ToggleFavorite(ctx, id); err != nil {
		return fmt.Errorf("toggle favorite: %w", err)
	}
	return nil
}

// SaveProgress moves the page marker, persists the updated record and
// records today's reading activity. A save that lands on the current page
// returns ErrNoChange and leaves everything untouched, including the
// streak. Unknown ids return (nil, nil).
func (s *Service) SaveProgress(ctx context.Context, id int64, newPage int) (*Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if b == nil {
		return nil, nil
	}

	now := s.now()
	updated, err := ApplyProgressUpdate(*b, newPage, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	if _, err := s.RecordActivity(ctx, now); err != nil {
		// The progress write already succeeded; a streak write failure
		// only costs today's activity mark.
		s.logger.Warn("record activity failed", "error", err)
	}

	s.logger.Info("progress saved",
		"id", updated.ID,
		"page", updated.CurrentPage,
		"finished", updated.Finished(),
	)
	return &updated, nil
}

// SetDeadline sets or, with a zero time, clears the reading goal. Setting
// a goal also makes the goal form visible, matching the save action in the
// presentation flow. Unknown ids return (nil, nil).
func (s *Service) SetDeadline(ctx context.Context, id int64, deadline time.Time) (*Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if b == nil {
		return nil, nil
	}

	updated := SetDeadline(*b, deadline)
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	if !deadline.IsZero() {
		if err := s.flags.SetGoalFormVisible(ctx, id, true); err != nil {
			return nil, fmt.Errorf("set goal flag: %w", err)
		}
	}
	return &updated, nil
}

// ReadAgain resets progress and the log for another pass through the book.
// The deadline survives.
func (s *Service) ReadAgain(ctx context.Context, id int64) (*Book, error) {
	return s.reset(ctx, id, false)
}

// ResetLog resets progress and the log and hides the goal form.
func (s *Service) ResetLog(ctx context.Context, id int64) (*Book, error) {
	return s.reset(ctx, id, true)
}

func (s *Service) reset(ctx context.Context, id int64, hideGoalForm bool) (*Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if b == nil {
		return nil, nil
	}

	updated := ResetProgress(*b)
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	if hideGoalForm {
		if err := s.flags.SetGoalFormVisible(ctx, id, false); err != nil {
			return nil, fmt.Errorf("set goal flag: %w", err)
		}
	}
	return &updated, nil
}

// RecordActivity marks today as a reading day. Idempotent within a
// calendar day: the state is only written when it changed.
func (s *Service) RecordActivity(ctx context.Context, today time.Time) (streak.State, error) {
	state, err := s.streaks.LoadStreak(ctx)
	if err != nil {
		return streak.State{}, fmt.Errorf("load streak: %w", err)
	}
	next := streak.Record(state, today)
	if next == state {
		return state, nil
	}
	if err := s.streaks.SaveStreak(ctx, next); err != nil {
		return streak.State{}, fmt.Errorf("save streak: %w", err)
	}
	return next, nil
}

func (s *Service) Streak(ctx context.Context) (streak.State, error) {
	return s.streaks.LoadStreak(ctx)
}

// Stats are the aggregate counters shown on the profile page.
type Stats struct {
	Total     int
	Reading   int // no completion date yet
	Finished  int
	Favorites int
	Streak    int
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	books, err := s.repo.GetAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list books: %w", err)
	}

	var st Stats
	st.Total = len(books)
	for _, b := range books {
		if b.Finished() {
			st.Finished++
		} else {
			st.Reading++
		}
		if b.IsFavorite {
			st.Favorites++
		}
	}

	state, err := s.streaks.LoadStreak(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load streak: %w", err)
	}
	st.Streak = state.Current
	return st, nil
}

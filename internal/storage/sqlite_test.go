package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/erwar/readora/internal/book"
	"github.com/erwar/readora/internal/profile"
	"github.com/erwar/readora/internal/streak"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := NewSQLiteRepository(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo, dbPath
}

func date(s string) time.Time {
	t, err := time.ParseInLocation(book.DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleBook() book.Book {
	return book.Book{
		Title:       "The Martian",
		Author:      "Andy Weir",
		Cover:       "https://example.com/martian.jpg",
		Category:    "Science Fiction",
		TotalPages:  369,
		CurrentPage: 120,
		StartedOn:   date("2024-05-01"),
		DailyLog: []book.LogEntry{
			{Date: date("2024-05-02"), PagesRead: 60, Timestamp: time.Date(2024, 5, 2, 21, 0, 0, 0, time.UTC)},
			{Date: date("2024-05-03"), PagesRead: 60, Timestamp: time.Date(2024, 5, 3, 22, 15, 0, 0, time.UTC)},
		},
	}
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	b := sampleBook()
	require.NoError(t, repo.Create(ctx, &b))
	require.NotZero(t, b.ID)

	loaded, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, b.Title, loaded.Title)
	assert.Equal(t, b.Author, loaded.Author)
	assert.Equal(t, b.Cover, loaded.Cover)
	assert.Equal(t, b.Category, loaded.Category)
	assert.Equal(t, b.TotalPages, loaded.TotalPages)
	assert.Equal(t, b.CurrentPage, loaded.CurrentPage)
	assert.Equal(t, b.StartedOn, loaded.StartedOn)
	assert.True(t, loaded.FinishedOn.IsZero())
	assert.True(t, loaded.Deadline.IsZero())
	assert.False(t, loaded.IsFavorite)
	assert.Equal(t, b.DailyLog, loaded.DailyLog)
}

func TestGetAll_MostRecentFirst(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first := sampleBook()
	require.NoError(t, repo.Create(ctx, &first))
	second := sampleBook()
	second.Title = "Artemis"
	require.NoError(t, repo.Create(ctx, &second))

	books, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Artemis", books[0].Title)
	assert.Equal(t, "The Martian", books[1].Title)
}

func TestIDsStrictlyIncrease(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 10; i++ {
		b := sampleBook()
		require.NoError(t, repo.Create(ctx, &b))
		assert.Greater(t, b.ID, last)
		last = b.ID
	}
}

func TestUpdate(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	b := sampleBook()
	require.NoError(t, repo.Create(ctx, &b))

	b.CurrentPage = 369
	b.FinishedOn = date("2024-06-10")
	b.Deadline = date("2024-07-01")
	b.DailyLog = append(b.DailyLog, book.LogEntry{
		Date: date("2024-06-10"), PagesRead: 249,
		Timestamp: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, repo.Update(ctx, &b))

	loaded, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 369, loaded.CurrentPage)
	assert.Equal(t, date("2024-06-10"), loaded.FinishedOn)
	assert.Equal(t, date("2024-07-01"), loaded.Deadline)
	assert.Len(t, loaded.DailyLog, 3)
}

func TestUpdate_UnknownIDIsNoOp(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	ghost := sampleBook()
	ghost.ID = 42
	require.NoError(t, repo.Update(ctx, &ghost))

	books, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestDelete_DoesNotResurrect(t *testing.T) {
	repo, dbPath := newTestRepo(t)
	ctx := context.Background()

	b := sampleBook()
	require.NoError(t, repo.Create(ctx, &b))
	require.NoError(t, repo.SetGoalFormVisible(ctx, b.ID, true))
	require.NoError(t, repo.Delete(ctx, b.ID))
	require.NoError(t, repo.DeleteGoalFormFlag(ctx, b.ID))

	loaded, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Reopen the same file: the record must stay gone.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened, err := NewSQLiteRepository(dbPath, logger)
	require.NoError(t, err)
	defer reopened.Close()

	books, err := reopened.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)

	visible, err := reopened.GoalFormVisible(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestToggleFavorite_IsItsOwnInverse(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	b := sampleBook()
	require.NoError(t, repo.Create(ctx, &b))

	require.NoError(t, repo.ToggleFavorite(ctx, b.ID))
	loaded, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsFavorite)

	favs, err := repo.GetFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 1)

	require.NoError(t, repo.ToggleFavorite(ctx, b.ID))
	loaded, err = repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsFavorite)
}

func TestLegacyFavoriteEncodings(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	insert := func(id int64, favorite any) {
		_, err := repo.db.ExecContext(ctx, `
			INSERT INTO books (id, title, author, total_pages, current_page, is_favorite, daily_log)
			VALUES (?, 'Legacy', 'Author', 100, 0, ?, '[]')
		`, id, favorite)
		require.NoError(t, err)
	}

	insert(1, "true")
	insert(2, 1)
	insert(3, 0)
	insert(4, "false")

	for id, want := range map[int64]bool{1: true, 2: true, 3: false, 4: false} {
		loaded, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, want, loaded.IsFavorite, "id %d", id)
	}

	favs, err := repo.GetFavorites(ctx)
	require.NoError(t, err)
	assert.Len(t, favs, 2)
}

func TestMalformedDailyLogDegradesToEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, total_pages, current_page, daily_log)
		VALUES (7, 'Corrupted', 'Author', 100, 10, 'not json at all')
	`)
	require.NoError(t, err)

	loaded, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded.DailyLog)
	assert.Equal(t, 10, loaded.CurrentPage)

	books, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestGetByCategory(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	scifi := sampleBook()
	require.NoError(t, repo.Create(ctx, &scifi))
	fantasy := sampleBook()
	fantasy.Title = "The Hobbit"
	fantasy.Category = "Fantasy"
	require.NoError(t, repo.Create(ctx, &fantasy))

	books, err := repo.GetByCategory(ctx, "Fantasy")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "The Hobbit", books[0].Title)
}

func TestStreakStoreRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	state, err := repo.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Current)
	assert.True(t, state.LastActive.IsZero())

	want := streak.State{LastActive: date("2024-06-10"), Current: 7}
	require.NoError(t, repo.SaveStreak(ctx, want))

	state, err = repo.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, state)
}

func TestStreakStore_MalformedCounterResets(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.setSetting(ctx, keyLastActiveDate, "2024-06-10"))
	require.NoError(t, repo.setSetting(ctx, keyCurrentStreak, "seven"))

	state, err := repo.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Current)
	assert.Equal(t, date("2024-06-10"), state.LastActive)
}

func TestGoalFormFlag(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	visible, err := repo.GoalFormVisible(ctx, 99)
	require.NoError(t, err)
	assert.False(t, visible)

	require.NoError(t, repo.SetGoalFormVisible(ctx, 99, true))
	visible, err = repo.GoalFormVisible(ctx, 99)
	require.NoError(t, err)
	assert.True(t, visible)

	require.NoError(t, repo.SetGoalFormVisible(ctx, 99, false))
	visible, err = repo.GoalFormVisible(ctx, 99)
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestProfileStore(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.LoadProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.Profile{}, p)

	want := profile.Profile{
		Username: "sam",
		Avatar:   "data:image/png;base64,aGVsbG8=",
		Genre:    "Fantasy",
	}
	require.NoError(t, repo.SaveProfile(ctx, want))

	p, err = repo.LoadProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, p)

	// Reset clears the profile and the streak counter but keeps the last
	// active date.
	require.NoError(t, repo.SaveStreak(ctx, streak.State{LastActive: date("2024-06-10"), Current: 4}))
	require.NoError(t, repo.ResetProfile(ctx))

	p, err = repo.LoadProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.Profile{}, p)

	state, err := repo.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Current)
	assert.Equal(t, date("2024-06-10"), state.LastActive)
}

// Package storage persists the book collection and the ambient key-value
// state (streak counters, profile fields, goal-form flags) in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/erwar/readora/internal/book"
	"github.com/erwar/readora/internal/profile"
	"github.com/erwar/readora/internal/streak"
	_ "github.com/mattn/go-sqlite3"
)

// Settings keys. The per-book goal-form flag uses goalFlagKey(id).
const (
	keyLastActiveDate = "lastActiveDate"
	keyCurrentStreak  = "currentStreak"
	keyUsername       = "username"
	keyAvatar         = "avatar"
	keyGenre          = "genre"
)

func goalFlagKey(id int64) string {
	return fmt.Sprintf("book_%d_showGoalForm", id)
}

// SQLiteRepository implements book.Repository, book.GoalFlagStore,
// streak.Store and profile.Store on a single database file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	lastID int64
}

func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := &SQLiteRepository{db: db, logger: logger}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := repo.seedLastID(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed id counter: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		cover_url TEXT,
		category TEXT,
		total_pages INTEGER NOT NULL,
		current_page INTEGER NOT NULL DEFAULT 0,
		started_on DATE,
		finished_on DATE,
		deadline DATE,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		daily_log TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_books_category ON books(category);
	CREATE INDEX IF NOT EXISTS idx_books_favorite ON books(is_favorite);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// seedLastID starts the id counter above every persisted id so ids stay
// strictly increasing across restarts even if the clock moved backward.
func (r *SQLiteRepository) seedLastID() error {
	var max sql.NullInt64
	if err := r.db.QueryRow("SELECT MAX(id) FROM books").Scan(&max); err != nil {
		return err
	}
	if max.Valid {
		r.lastID = max.Int64
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// nextID assigns time-based ids (milliseconds since epoch), bumped past
// the previous one when two creates land in the same millisecond.
func (r *SQLiteRepository) nextID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

func (r *SQLiteRepository) Create(ctx context.Context, b *book.Book) error {
	log, err := json.Marshal(logOrEmpty(b.DailyLog))
	if err != nil {
		return fmt.Errorf("encode daily log: %w", err)
	}

	b.ID = r.nextID()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, cover_url, category, total_pages, current_page, started_on, finished_on, deadline, is_favorite, daily_log)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Title, b.Author, b.Cover, b.Category, b.TotalPages, b.CurrentPage,
		nullDate(b.StartedOn), nullDate(b.FinishedOn), nullDate(b.Deadline), b.IsFavorite, string(log))
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

const bookColumns = "id, title, author, cover_url, category, total_pages, current_page, started_on, finished_on, deadline, is_favorite, daily_log"

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*book.Book, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id = ?", id)

	b, err := r.scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// GetAll returns the collection most-recent-first. Rows that fail to scan
// are skipped with a warning instead of failing the whole load.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]book.Book, error) {
	return r.queryBooks(ctx,
		"SELECT "+bookColumns+" FROM books ORDER BY id DESC")
}

func (r *SQLiteRepository) GetFavorites(ctx context.Context) ([]book.Book, error) {
	return r.queryBooks(ctx,
		"SELECT "+bookColumns+" FROM books WHERE is_favorite IN (1, 'true') ORDER BY id DESC")
}

func (r *SQLiteRepository) GetByCategory(ctx context.Context, category string) ([]book.Book, error) {
	return r.queryBooks(ctx,
		"SELECT "+bookColumns+" FROM books WHERE category = ? ORDER BY id DESC", category)
}

func (r *SQLiteRepository) Update(ctx context.Context, b *book.Book) error {
	log, err := json.Marshal(logOrEmpty(b.DailyLog))
	if err != nil {
		return fmt.Errorf("encode daily log: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE books SET
			title = ?, author = ?, cover_url = ?, category = ?,
			total_pages = ?, current_page = ?, started_on = ?, finished_on = ?,
			deadline = ?, is_favorite = ?, daily_log = ?
		WHERE id = ?
	`, b.Title, b.Author, b.Cover, b.Category, b.TotalPages, b.CurrentPage,
		nullDate(b.StartedOn), nullDate(b.FinishedOn), nullDate(b.Deadline),
		b.IsFavorite, string(log), b.ID)
	return err
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) ToggleFavorite(ctx context.Context, id int64) error {
	// Normalizes legacy truthy encodings ('true', 1) in the process.
	_, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET is_favorite = CASE WHEN is_favorite IN (1, 'true') THEN 0 ELSE 1 END
		WHERE id = ?
	`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanBook(s scanner) (*book.Book, error) {
	var b book.Book
	var cover, category, favorite sql.NullString
	var startedOn, finishedOn, deadline sql.NullTime
	var logJSON string

	err := s.Scan(
		&b.ID, &b.Title, &b.Author, &cover, &category,
		&b.TotalPages, &b.CurrentPage, &startedOn, &finishedOn, &deadline,
		&favorite, &logJSON,
	)
	if err != nil {
		return nil, err
	}

	b.Cover = cover.String
	b.Category = category.String
	if startedOn.Valid {
		b.StartedOn = book.DateOf(startedOn.Time)
	}
	if finishedOn.Valid {
		b.FinishedOn = book.DateOf(finishedOn.Time)
	}
	if deadline.Valid {
		b.Deadline = book.DateOf(deadline.Time)
	}
	// Legacy rows encoded the favorite flag as 'true' or 1.
	b.IsFavorite = favorite.String == "1" || favorite.String == "true"

	if logJSON != "" {
		if err := json.Unmarshal([]byte(logJSON), &b.DailyLog); err != nil {
			r.logger.Warn("unreadable daily log, resetting to empty",
				"book_id", b.ID, "error", err)
			b.DailyLog = nil
		}
	}

	return &b, nil
}

func (r *SQLiteRepository) queryBooks(ctx context.Context, query string, args ...any) ([]book.Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var books []book.Book
	for rows.Next() {
		b, err := r.scanBook(rows)
		if err != nil {
			r.logger.Warn("skipping unreadable book record", "error", err)
			continue
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// --- settings key-value store ---

func (r *SQLiteRepository) getSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *SQLiteRepository) setSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) deleteSetting(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

// --- goal-form visibility flags (book.GoalFlagStore) ---

func (r *SQLiteRepository) SetGoalFormVisible(ctx context.Context, id int64, visible bool) error {
	return r.setSetting(ctx, goalFlagKey(id), strconv.FormatBool(visible))
}

func (r *SQLiteRepository) GoalFormVisible(ctx context.Context, id int64) (bool, error) {
	value, ok, err := r.getSetting(ctx, goalFlagKey(id))
	if err != nil || !ok {
		return false, err
	}
	return value == "true", nil
}

func (r *SQLiteRepository) DeleteGoalFormFlag(ctx context.Context, id int64) error {
	return r.deleteSetting(ctx, goalFlagKey(id))
}

// --- streak state (streak.Store) ---

// LoadStreak reads the streak counters. Missing or malformed values
// degrade to the zero state rather than failing the caller.
func (r *SQLiteRepository) LoadStreak(ctx context.Context) (streak.State, error) {
	var s streak.State

	if value, ok, err := r.getSetting(ctx, keyLastActiveDate); err != nil {
		return streak.State{}, err
	} else if ok {
		t, err := time.ParseInLocation(book.DateLayout, value, time.UTC)
		if err != nil {
			r.logger.Warn("unreadable last active date, resetting streak", "value", value)
			return streak.State{}, nil
		}
		s.LastActive = t
	}

	if value, ok, err := r.getSetting(ctx, keyCurrentStreak); err != nil {
		return streak.State{}, err
	} else if ok {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			r.logger.Warn("unreadable streak counter, resetting streak", "value", value)
			return streak.State{LastActive: s.LastActive}, nil
		}
		s.Current = n
	}

	return s, nil
}

func (r *SQLiteRepository) SaveStreak(ctx context.Context, s streak.State) error {
	if err := r.setSetting(ctx, keyLastActiveDate, s.LastActive.Format(book.DateLayout)); err != nil {
		return err
	}
	return r.setSetting(ctx, keyCurrentStreak, strconv.Itoa(s.Current))
}

// --- profile fields (profile.Store) ---

func (r *SQLiteRepository) LoadProfile(ctx context.Context) (profile.Profile, error) {
	var p profile.Profile
	for key, dest := range map[string]*string{
		keyUsername: &p.Username,
		keyAvatar:   &p.Avatar,
		keyGenre:    &p.Genre,
	} {
		value, ok, err := r.getSetting(ctx, key)
		if err != nil {
			return profile.Profile{}, err
		}
		if ok {
			*dest = value
		}
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, p profile.Profile) error {
	if err := r.setSetting(ctx, keyUsername, p.Username); err != nil {
		return err
	}
	if p.Avatar != "" {
		if err := r.setSetting(ctx, keyAvatar, p.Avatar); err != nil {
			return err
		}
	}
	return r.setSetting(ctx, keyGenre, p.Genre)
}

// ResetProfile clears the profile fields and the streak counter; the last
// active date is left so the next activity still compares against it.
func (r *SQLiteRepository) ResetProfile(ctx context.Context) error {
	for _, key := range []string{keyUsername, keyAvatar, keyGenre, keyCurrentStreak} {
		if err := r.deleteSetting(ctx, key); err != nil {
			return fmt.Errorf("delete setting %s: %w", key, err)
		}
	}
	return nil
}

func nullDate(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func logOrEmpty(entries []book.LogEntry) []book.LogEntry {
	if entries == nil {
		return []book.LogEntry{}
	}
	return entries
}

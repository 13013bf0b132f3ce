package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/erwar/readora/internal/book"
	"github.com/erwar/readora/internal/profile"
	"github.com/erwar/readora/internal/scraper"
	"github.com/erwar/readora/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dbPath       string
	source       string
	googleAPIKey string
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "readora",
		Short: "Readora - your personal reading tracker",
		Long: `Readora tracks the books you read: page progress, reading goals,
favorites, daily logs and your reading streak. Add books by hand or from
an online catalog search.`,
	}

	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".readora", "readora.db")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&source, "source", "google", "catalog source (google, openlibrary)")
	rootCmd.PersistentFlags().StringVar(&googleAPIKey, "google-api-key", "", "optional Google Books API key")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity")

	rootCmd.AddCommand(
		addCmd(),
		discoverCmd(),
		listCmd(),
		showCmd(),
		progressCmd(),
		goalCmd(),
		favoriteCmd(),
		removeCmd(),
		againCmd(),
		resetLogCmd(),
		statsCmd(),
		streakCmd(),
		profileCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func initServices() (*book.Service, *storage.SQLiteRepository, func(), error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("create db directory: %w", err)
	}

	logger := newLogger()
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init repository: %w", err)
	}

	svc := book.NewService(repo, repo, repo, logger)
	cleanup := func() { repo.Close() }

	return svc, repo, cleanup, nil
}

func newCatalog() scraper.Catalog {
	switch source {
	case "openlibrary", "ol":
		return scraper.NewOpenLibraryClient()
	default:
		return scraper.NewGoogleBooksClient(googleAPIKey)
	}
}

func addCmd() *cobra.Command {
	var title, author, cover, category, startedOn string
	var totalPages int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			draft := book.Draft{
				Title:      title,
				Author:     author,
				Cover:      cover,
				Category:   category,
				TotalPages: totalPages,
			}
			if startedOn != "" {
				t, err := time.ParseInLocation(book.DateLayout, startedOn, time.UTC)
				if err != nil {
					return fmt.Errorf("invalid started date %q (use YYYY-MM-DD)", startedOn)
				}
				draft.StartedOn = t
			}

			b, err := svc.Add(context.Background(), draft, false)
			if err != nil {
				return err
			}

			fmt.Printf("Added: %s by %s (ID: %d)\n", b.Title, b.Author, b.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "book title (required)")
	cmd.Flags().StringVarP(&author, "author", "a", "", "book author (required)")
	cmd.Flags().StringVar(&cover, "cover", "", "cover image URL")
	cmd.Flags().StringVarP(&category, "category", "c", "",
		"category ("+strings.Join(book.Categories, ", ")+")")
	cmd.Flags().IntVarP(&totalPages, "pages", "p", 0, "total pages (required)")
	cmd.Flags().StringVar(&startedOn, "started", "", "started date YYYY-MM-DD (default today)")

	return cmd
}

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [query]",
		Short: "Search an online catalog and add books from the results",
		Long: `Search the catalog by title or ISBN and pick results to add.
Examples:
  readora discover "Project Hail Mary"
  readora discover 9780593135204
  readora discover "Andy Weir" --source openlibrary`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			query := strings.Join(args, " ")
			session := scraper.NewSession(newCatalog())
			ctx := context.Background()

			fmt.Printf("Searching for: %s\n\n", query)

			candidates, err := session.Search(ctx, query)
			if errors.Is(err, scraper.ErrNoResults) {
				fmt.Println("No books found for your search.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			for i, c := range candidates {
				fmt.Printf("[%d] %s by %s", i+1, c.Title, c.Author)
				if c.TotalPages > 0 {
					fmt.Printf(" (%d pages)", c.TotalPages)
				}
				fmt.Printf(" - %s\n", c.Category)
			}

			return promptAndAddCandidates(ctx, svc, candidates)
		},
	}
}

// promptAndAddCandidates asks which results to add and creates a book for
// each selection. Candidates without a known page count prompt for one,
// since a book cannot be tracked without its total pages.
func promptAndAddCandidates(ctx context.Context, svc *book.Service, candidates []scraper.Candidate) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("\nEnter numbers to add (comma-separated), or 'q' to quit: ")
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "q" || input == "" {
		return nil
	}

	var added int
	for _, numStr := range strings.Split(input, ",") {
		numStr = strings.TrimSpace(numStr)
		num, err := strconv.Atoi(numStr)
		if err != nil || num < 1 || num > len(candidates) {
			fmt.Printf("Invalid selection: %s\n", numStr)
			continue
		}

		c := candidates[num-1]
		pages := c.TotalPages
		if pages <= 0 {
			fmt.Printf("Total pages for %q: ", c.Title)
			pagesStr, _ := reader.ReadString('\n')
			pages, err = strconv.Atoi(strings.TrimSpace(pagesStr))
			if err != nil || pages <= 0 {
				fmt.Println("Invalid page count, skipping.")
				continue
			}
		}

		b, err := svc.Add(ctx, book.Draft{
			Title:      c.Title,
			Author:     c.Author,
			Cover:      c.Cover,
			Category:   c.Category,
			TotalPages: pages,
		}, true)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		fmt.Printf("Added: %s by %s (ID: %d)\n", b.Title, b.Author, b.ID)
		added++
	}

	if added > 0 {
		fmt.Printf("\nDone! Added: %d\n", added)
	}
	return nil
}

func listCmd() *cobra.Command {
	var favorites bool
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books in your library",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			var books []book.Book

			switch {
			case favorites:
				books, err = svc.ListFavorites(ctx)
			case category != "":
				books, err = svc.ListByCategory(ctx, category)
			default:
				books, err = svc.List(ctx)
			}
			if err != nil {
				// A broken library file should not lock the user out.
				fmt.Fprintf(os.Stderr, "warning: could not read library: %v\n", err)
				books = nil
			}

			if len(books) == 0 {
				fmt.Println("No books found.")
				return nil
			}

			for _, b := range books {
				printBookShort(b)
			}

			fmt.Printf("\nTotal: %d books\n", len(books))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&favorites, "favorites", "f", false, "only favorites")
	cmd.Flags().StringVarP(&category, "category", "c", "", "filter by category")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [book-id]",
		Short: "Show details of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, repo, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			b, err := svc.Get(ctx, id)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("book %d not found", id)
			}

			goalVisible, _ := repo.GoalFormVisible(ctx, id)
			printBookFull(*b, goalVisible)
			return nil
		},
	}
}

func progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress [book-id] [page]",
		Short: "Save your current page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			page, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid page: %s", args[1])
			}

			ctx := context.Background()
			b, err := svc.Get(ctx, id)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("book %d not found", id)
			}

			// Clamp to the valid range before saving.
			if page < 0 {
				page = 0
			}
			if page > b.TotalPages {
				page = b.TotalPages
			}

			updated, err := svc.SaveProgress(ctx, id, page)
			if errors.Is(err, book.ErrNoChange) {
				fmt.Printf("No change in pages. Current page is %d.\n", b.CurrentPage)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("Progress updated! You are now on page %d of %d (%d%%).\n",
				updated.CurrentPage, updated.TotalPages, book.ProgressPercent(*updated))
			if updated.Finished() {
				fmt.Println("Book completed!")
			}
			return nil
		},
	}
}

func goalCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "goal [book-id] [deadline]",
		Short: "Set or clear a reading deadline",
		Long: `Set a deadline for finishing a book, or clear it.
Examples:
  readora goal 1748354919000 2026-12-31
  readora goal 1748354919000 --clear`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var deadline time.Time
			if !clear {
				if len(args) < 2 {
					return fmt.Errorf("deadline required (YYYY-MM-DD), or use --clear")
				}
				deadline, err = time.ParseInLocation(book.DateLayout, args[1], time.UTC)
				if err != nil {
					return fmt.Errorf("invalid deadline %q (use YYYY-MM-DD)", args[1])
				}
			}

			b, err := svc.SetDeadline(context.Background(), id, deadline)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("book %d not found", id)
			}

			if clear {
				fmt.Printf("Goal cleared for: %s\n", b.Title)
			} else {
				fmt.Printf("Deadline set: finish %q by %s\n", b.Title, b.Deadline.Format(book.DateLayout))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "clear the deadline")
	return cmd
}

func favoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite [book-id]",
		Short: "Toggle a book's favorite mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			if err := svc.ToggleFavorite(ctx, id); err != nil {
				return err
			}

			b, err := svc.Get(ctx, id)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("book %d not found", id)
			}
			if b.IsFavorite {
				fmt.Printf("Added to favorites: %s\n", b.Title)
			} else {
				fmt.Printf("Removed from favorites: %s\n", b.Title)
			}
			return nil
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [book-id]",
		Short: "Remove a book from your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			b, err := svc.Get(ctx, id)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("book %d not found", id)
			}

			if err := svc.Remove(ctx, id); err != nil {
				return err
			}

			fmt.Printf("Removed: %s by %s\n", b.Title, b.Author)
			return nil
		},
	}
}

func againCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "again [book-id]",
		Short: "Reset progress to read a book again (keeps the goal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			b, err := svc.ReadAgain(context.Background(), id)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("book %d not found", id)
			}

			fmt.Printf("Progress reset! Happy reading %q again.\n", b.Title)
			return nil
		},
	}
}

func resetLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-log [book-id]",
		Short: "Reset a book's reading log and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			b, err := svc.ResetLog(context.Background(), id)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("book %d not found", id)
			}

			fmt.Printf("Reading log and progress reset for %q.\n", b.Title)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show reading statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := svc.Stats(context.Background())
			if err != nil {
				return err
			}

			fmt.Println("=== Reading Stats ===")
			fmt.Printf("Total books:       %d\n", st.Total)
			fmt.Printf("Currently reading: %d\n", st.Reading)
			fmt.Printf("Finished:          %d\n", st.Finished)
			fmt.Printf("Favorites:         %d\n", st.Favorites)
			fmt.Printf("Reading streak:    %d day(s)\n", st.Streak)
			return nil
		},
	}
}

func streakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Show your reading streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			state, err := svc.Streak(context.Background())
			if err != nil {
				return err
			}

			if state.Current == 0 {
				fmt.Println("No reading streak yet. Save some progress to start one!")
				return nil
			}
			fmt.Printf("Current streak: %d day(s), last active %s\n",
				state.Current, state.LastActive.Format(book.DateLayout))
			return nil
		},
	}
}

func profileCmd() *cobra.Command {
	var name, genre, avatarFile string
	var reset bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your reader profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, repo, cleanup, err := initServices()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()

			if reset {
				if err := repo.ResetProfile(ctx); err != nil {
					return err
				}
				fmt.Println("Profile reset.")
				return nil
			}

			p, err := repo.LoadProfile(ctx)
			if err != nil {
				return err
			}

			changed := false
			if cmd.Flags().Changed("name") {
				p.Username = name
				changed = true
			}
			if cmd.Flags().Changed("genre") {
				if !profile.ValidGenre(genre) {
					return fmt.Errorf("unknown genre: %s", genre)
				}
				p.Genre = genre
				changed = true
			}
			if avatarFile != "" {
				dataURL, err := encodeAvatar(avatarFile)
				if err != nil {
					return err
				}
				p.Avatar = dataURL
				changed = true
			}

			if changed {
				if err := repo.SaveProfile(ctx, p); err != nil {
					return err
				}
				fmt.Println("Profile saved.")
				return nil
			}

			printProfile(p)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&genre, "genre", "", "favorite genre")
	cmd.Flags().StringVar(&avatarFile, "avatar", "", "path to an avatar image file")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the profile and streak counter")
	return cmd
}

// encodeAvatar reads an image file into a data URL, the form the profile
// store keeps avatars in.
func encodeAvatar(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("avatar must be an image, got %s", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func printProfile(p profile.Profile) {
	if p.Username == "" && p.Genre == "" && p.Avatar == "" {
		fmt.Println("No profile yet. Set one with --name, --genre or --avatar.")
		return
	}
	if p.Username != "" {
		fmt.Printf("Name:   %s\n", p.Username)
	}
	if p.Genre != "" {
		fmt.Printf("Genre:  %s\n", p.Genre)
	}
	if p.Avatar != "" {
		fmt.Printf("Avatar: set (%d bytes)\n", len(p.Avatar))
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid book ID: %s", s)
	}
	return id, nil
}

func printBookShort(b book.Book) {
	fmt.Printf("[%d] %s by %s (%d%%)", b.ID, b.Title, b.Author, book.ProgressPercent(b))
	if b.IsFavorite {
		fmt.Print(" *fav*")
	}
	if b.Finished() {
		fmt.Print(" [finished]")
	}
	fmt.Println()
}

func printBookFull(b book.Book, goalVisible bool) {
	fmt.Printf("ID:           %d\n", b.ID)
	fmt.Printf("Title:        %s\n", b.Title)
	fmt.Printf("Author:       %s\n", b.Author)
	fmt.Printf("Category:     %s\n", b.Category)
	if b.Cover != "" {
		fmt.Printf("Cover:        %s\n", b.Cover)
	}
	fmt.Printf("Progress:     page %d of %d (%d%%)\n", b.CurrentPage, b.TotalPages, book.ProgressPercent(b))
	if !b.StartedOn.IsZero() {
		fmt.Printf("Started:      %s\n", b.StartedOn.Format(book.DateLayout))
	}
	if b.Finished() {
		fmt.Printf("Finished:     %s\n", b.FinishedOn.Format(book.DateLayout))
	}
	if b.IsFavorite {
		fmt.Println("Favorite:     yes")
	}

	status := book.EvaluateDeadline(b, book.Today())
	switch status.State {
	case book.DeadlineSucceeded:
		fmt.Println("Goal:         succeeded - finished on time")
	case book.DeadlineMissed:
		fmt.Println("Goal:         missed - finished after the deadline")
	case book.DeadlineOverdue:
		fmt.Printf("Goal:         overdue - deadline %s has passed\n", b.Deadline.Format(book.DateLayout))
	case book.DeadlineOnTrack:
		fmt.Printf("Goal:         %d day(s) left until %s\n", status.DaysLeft, b.Deadline.Format(book.DateLayout))
	}
	if goalVisible && status.State == book.DeadlineNone {
		fmt.Println("Goal:         form open, no deadline set")
	}

	if len(b.DailyLog) > 0 {
		fmt.Printf("Log entries:  %d\n", len(b.DailyLog))
		start := len(b.DailyLog) - 5
		if start < 0 {
			start = 0
		}
		for _, e := range b.DailyLog[start:] {
			fmt.Printf("  %s  %+d page(s)\n", e.Date.Format(book.DateLayout), e.PagesRead)
		}
	}
}

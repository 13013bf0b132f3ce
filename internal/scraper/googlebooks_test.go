package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoogleTestClient(handler http.HandlerFunc) (*GoogleBooksClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewGoogleBooksClient("")
	c.baseURL = srv.URL
	return c, srv
}

func TestGoogleBooksSearch(t *testing.T) {
	c, srv := newGoogleTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, "hail mary", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"totalItems": 2,
			"items": [
				{
					"id": "abc123",
					"volumeInfo": {
						"title": "Project Hail Mary",
						"authors": ["Andy Weir"],
						"categories": ["Fiction", "Science Fiction"],
						"pageCount": 476,
						"imageLinks": {"thumbnail": "https://books.example/cover.jpg"}
					}
				},
				{
					"id": "def456",
					"volumeInfo": {
						"title": "Untitled Draft"
					}
				}
			]
		}`))
	})
	defer srv.Close()

	candidates, err := c.Search(context.Background(), "hail mary")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "abc123", first.ID)
	assert.Equal(t, "Project Hail Mary", first.Title)
	assert.Equal(t, "Andy Weir", first.Author)
	assert.Equal(t, "https://books.example/cover.jpg", first.Cover)
	assert.Equal(t, "Fiction", first.Category) // first listed category wins
	assert.Equal(t, 476, first.TotalPages)

	// Missing fields fall back to their sentinels.
	second := candidates[1]
	assert.Equal(t, "N/A", second.Author)
	assert.Equal(t, PlaceholderCover, second.Cover)
	assert.Equal(t, "Uncategorized", second.Category)
	assert.Equal(t, 0, second.TotalPages)
}

func TestGoogleBooksSearch_MultipleAuthorsJoined(t *testing.T) {
	c, srv := newGoogleTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"id": "x", "volumeInfo": {"title": "Good Omens", "authors": ["Terry Pratchett", "Neil Gaiman"]}}]}`))
	})
	defer srv.Close()

	candidates, err := c.Search(context.Background(), "good omens")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", candidates[0].Author)
}

func TestGoogleBooksSearch_NoResults(t *testing.T) {
	c, srv := newGoogleTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalItems": 0}`))
	})
	defer srv.Close()

	_, err := c.Search(context.Background(), "zxqwv")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestGoogleBooksSearch_StatusErrorIsNotNoResults(t *testing.T) {
	c, srv := newGoogleTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := c.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResults)
}

func TestGoogleBooksSearch_TransportErrorIsNotNoResults(t *testing.T) {
	c, srv := newGoogleTestClient(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // kill the server before searching

	_, err := c.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResults)
}

func TestOpenLibrarySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		w.Write([]byte(`{
			"numFound": 1,
			"docs": [
				{
					"key": "/works/OL123W",
					"title": "The Martian",
					"author_name": ["Andy Weir"],
					"subject": ["Science Fiction", "Mars"],
					"cover_i": 12345,
					"number_of_pages_median": 369
				},
				{
					"key": "/works/OL456W",
					"title": "Bare Record"
				}
			]
		}`))
	}))
	defer srv.Close()

	c := NewOpenLibraryClient()
	c.baseURL = srv.URL

	candidates, err := c.Search(context.Background(), "the martian")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "/works/OL123W", first.ID)
	assert.Equal(t, "Andy Weir", first.Author)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/12345-M.jpg", first.Cover)
	assert.Equal(t, "Science Fiction", first.Category)
	assert.Equal(t, 369, first.TotalPages)

	second := candidates[1]
	assert.Equal(t, "N/A", second.Author)
	assert.Equal(t, PlaceholderCover, second.Cover)
	assert.Equal(t, "Uncategorized", second.Category)
}

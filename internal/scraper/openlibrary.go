package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type OpenLibraryClient struct {
	client  *http.Client
	baseURL string
}

func NewOpenLibraryClient() *OpenLibraryClient {
	return &OpenLibraryClient{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: "https://openlibrary.org",
	}
}

type olSearchResult struct {
	NumFound int     `json:"numFound"`
	Docs     []olDoc `json:"docs"`
}

type olDoc struct {
	Key           string   `json:"key"`
	Title         string   `json:"title"`
	AuthorName    []string `json:"author_name"`
	Subject       []string `json:"subject"`
	CoverI        int64    `json:"cover_i"`
	NumberOfPages int      `json:"number_of_pages_median"`
}

// Search queries the OpenLibrary search API and maps the hits onto the
// same candidate contract as Google Books.
func (c *OpenLibraryClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	searchURL := fmt.Sprintf("%s/search.json?q=%s&limit=%d&fields=key,title,author_name,subject,cover_i,number_of_pages_median",
		c.baseURL, url.QueryEscape(query), MaxResults)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search OpenLibrary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("OpenLibrary returned status %d", resp.StatusCode)
	}

	var result olSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	candidates := make([]Candidate, 0, len(result.Docs))
	for _, doc := range result.Docs {
		if doc.Title == "" {
			continue
		}

		author := "N/A"
		if len(doc.AuthorName) > 0 {
			author = strings.Join(doc.AuthorName, ", ")
		}
		cover := PlaceholderCover
		if doc.CoverI > 0 {
			cover = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverI)
		}
		category := "Uncategorized"
		if len(doc.Subject) > 0 {
			category = doc.Subject[0]
		}

		candidates = append(candidates, Candidate{
			ID:         doc.Key,
			Title:      doc.Title,
			Author:     author,
			Cover:      cover,
			Category:   category,
			TotalPages: doc.NumberOfPages,
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoResults
	}
	return candidates, nil
}

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

type GoogleBooksClient struct {
	client  *http.Client
	baseURL string
	apiKey  string // optional, for higher rate limits
}

func NewGoogleBooksClient(apiKey string) *GoogleBooksClient {
	return &GoogleBooksClient{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: "https://www.googleapis.com/books/v1",
		apiKey:  apiKey,
	}
}

type gbSearchResult struct {
	TotalItems int      `json:"totalItems"`
	Items      []gbItem `json:"items"`
}

type gbItem struct {
	ID         string       `json:"id"`
	VolumeInfo gbVolumeInfo `json:"volumeInfo"`
}

type gbVolumeInfo struct {
	Title      string       `json:"title"`
	Authors    []string     `json:"authors"`
	Categories []string     `json:"categories"`
	PageCount  int          `json:"pageCount"`
	ImageLinks gbImageLinks `json:"imageLinks"`
}

type gbImageLinks struct {
	Thumbnail string `json:"thumbnail"`
}

// Search queries Google Books by free text (title or ISBN) and returns up
// to MaxResults candidates. A transport or status failure is returned
// wrapped; zero hits return ErrNoResults.
func (c *GoogleBooksClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	searchURL := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d",
		c.baseURL, url.QueryEscape(query), MaxResults)
	if c.apiKey != "" {
		searchURL += "&key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search Google Books: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("Google Books returned status %d", resp.StatusCode)
	}

	var result gbSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}

	candidates := itemsToCandidates(result.Items)
	if len(candidates) == 0 {
		return nil, ErrNoResults
	}
	return candidates, nil
}

func itemsToCandidates(items []gbItem) []Candidate {
	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		vi := item.VolumeInfo

		title := vi.Title
		if title == "" {
			title = "N/A"
		}
		author := "N/A"
		if len(vi.Authors) > 0 {
			author = strings.Join(vi.Authors, ", ")
		}
		cover := vi.ImageLinks.Thumbnail
		if cover == "" {
			cover = PlaceholderCover
		}
		category := "Uncategorized"
		if len(vi.Categories) > 0 {
			category = vi.Categories[0]
		}

		candidates = append(candidates, Candidate{
			ID:         item.ID,
			Title:      title,
			Author:     author,
			Cover:      cover,
			Category:   category,
			TotalPages: vi.PageCount,
		})
	}
	return candidates
}

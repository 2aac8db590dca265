package models

import (
	"fmt"
	"strings"

	"offer-crew/internal/common/validation"
)

const DefaultMaxResults = 10

// SearchQuery is the input of the search specialist.
type SearchQuery struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func NewSearchQuery(query string, maxResults int) (*SearchQuery, error) {
	q := &SearchQuery{Query: strings.TrimSpace(query), MaxResults: maxResults}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("SearchQuery: query is required")
	}
	if q.MaxResults < 0 {
		return fmt.Errorf("SearchQuery: max_results must not be negative")
	}
	return nil
}

// SearchResultItem is one discovered page.
type SearchResultItem struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func NewSearchResultItem(url string) (*SearchResultItem, error) {
	item := &SearchResultItem{URL: url}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

func (i *SearchResultItem) Validate() error {
	if err := validation.ValidateHTTPURL(i.URL); err != nil {
		return fmt.Errorf("SearchResultItem: %w", err)
	}
	return nil
}

// SearchResults is the ordered output of the search stage.
type SearchResults struct {
	Results []SearchResultItem `json:"results"`
}

func (r *SearchResults) Validate() error {
	for i := range r.Results {
		if err := r.Results[i].Validate(); err != nil {
			return fmt.Errorf("SearchResults.results[%d]: %w", i, err)
		}
	}
	return nil
}

// URLs returns the result URLs in order.
func (r *SearchResults) URLs() []string {
	urls := make([]string, 0, len(r.Results))
	for _, item := range r.Results {
		urls = append(urls, item.URL)
	}
	return urls
}

// Distinct drops repeated URLs, keeps the first occurrence and caps the list at limit.
func (r *SearchResults) Distinct(limit int) *SearchResults {
	seen := make(map[string]struct{}, len(r.Results))
	out := &SearchResults{Results: make([]SearchResultItem, 0, len(r.Results))}
	for _, item := range r.Results {
		if limit > 0 && len(out.Results) >= limit {
			break
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		out.Results = append(out.Results, item)
	}
	return out
}

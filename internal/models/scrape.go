package models

import (
	"fmt"

	"offer-crew/internal/common/validation"
)

// ScrapeRequest is the input of the web scraper agent. Selectors carry the
// offer-form field names when no CSS selectors are known.
type ScrapeRequest struct {
	URL       string      `json:"url"`
	Selectors []string    `json:"selectors,omitempty"`
	Context   interface{} `json:"context,omitempty"`
}

func NewScrapeRequest(url string, selectors []string, context interface{}) (*ScrapeRequest, error) {
	req := &ScrapeRequest{URL: url, Selectors: selectors, Context: context}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *ScrapeRequest) Validate() error {
	if err := validation.ValidateHTTPURL(r.URL); err != nil {
		return fmt.Errorf("ScrapeRequest: %w", err)
	}
	return nil
}

// ScrapeResponse holds the fields extracted from one page. A failed scrape
// keeps the URL, an empty Data map and the Error marker.
type ScrapeResponse struct {
	URL   string                 `json:"url"`
	Data  map[string]interface{} `json:"data"`
	Error string                 `json:"error,omitempty"`
}

func NewScrapeResponse(url string, data map[string]interface{}) (*ScrapeResponse, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	resp := &ScrapeResponse{URL: url, Data: data}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewFailedScrapeResponse records a page that could not be scraped. The URL is
// kept as given even when it does not validate.
func NewFailedScrapeResponse(url string, err error) ScrapeResponse {
	msg := "scrape failed"
	if err != nil {
		msg = err.Error()
	}
	return ScrapeResponse{URL: url, Data: map[string]interface{}{}, Error: msg}
}

func (r *ScrapeResponse) Validate() error {
	if err := validation.ValidateHTTPURL(r.URL); err != nil {
		return fmt.Errorf("ScrapeResponse: %w", err)
	}
	if r.Data == nil && r.Error == "" {
		return fmt.Errorf("ScrapeResponse: data is required")
	}
	return nil
}

func (r *ScrapeResponse) Failed() bool {
	return r.Error != ""
}

// ConsolidationRequest is the input of the data consolidator.
type ConsolidationRequest struct {
	ScrapeResponses []ScrapeResponse `json:"scrape_responses"`
}

// ConsolidatedData merges every successful scrape into one list of items.
type ConsolidatedData struct {
	ConsolidatedItems []map[string]interface{} `json:"consolidated_items"`
	Summary           string                   `json:"summary,omitempty"`
}

func (d *ConsolidatedData) Validate() error {
	if d.ConsolidatedItems == nil {
		return fmt.Errorf("ConsolidatedData: consolidated_items is required")
	}
	return nil
}

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	commonhttp "offer-crew/internal/common/http"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/metrics"
)

const (
	WebScraperName            = "WebScraper"
	DefaultScrapeTimeout      = 15 * time.Second
	DefaultMaxParagraphs      = 5
	DefaultMinParagraphLength = 20
	NoTitle                   = "No Title"
)

type WebScraperConfig struct {
	UserAgent          string
	Timeout            time.Duration
	MaxParagraphs      int
	MinParagraphLength int
	MaxBodyBytes       int64
}

// PageResult is what the scraper reports for one page. Error is set instead of
// Title and Paragraphs when the fetch failed.
type PageResult struct {
	URL        string
	Title      string
	Paragraphs []string
	Error      string
}

func (p *PageResult) ToMap() map[string]interface{} {
	if p.Error != "" {
		return map[string]interface{}{"error": p.Error, "url": p.URL}
	}
	paragraphs := p.Paragraphs
	if paragraphs == nil {
		paragraphs = []string{}
	}
	return map[string]interface{}{"url": p.URL, "title": p.Title, "paragraphs": paragraphs}
}

func (p *PageResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToMap())
}

// WebScraper fetches a page and extracts its title and leading paragraphs.
type WebScraper struct {
	config WebScraperConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewWebScraper(cfg WebScraperConfig, log logger.Logger) *WebScraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultScrapeTimeout
	}
	if cfg.MaxParagraphs <= 0 {
		cfg.MaxParagraphs = DefaultMaxParagraphs
	}
	if cfg.MinParagraphLength <= 0 {
		cfg.MinParagraphLength = DefaultMinParagraphLength
	}
	return &WebScraper{
		config: cfg,
		client: commonhttp.NewClient(cfg.Timeout, cfg.UserAgent, cfg.MaxBodyBytes),
		logger: log,
	}
}

func (s *WebScraper) Name() string { return WebScraperName }

func (s *WebScraper) Description() string {
	return "Scrapes a URL for content."
}

func (s *WebScraper) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Absolute http or https URL of the page to scrape.",
			},
		},
		"required": []string{"url"},
	}
}

func (s *WebScraper) Call(ctx context.Context, arguments string) string {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || strings.TrimSpace(args.URL) == "" {
		args.URL = strings.Trim(strings.TrimSpace(arguments), `"`)
	}

	out, _ := json.Marshal(s.Scrape(ctx, args.URL))
	return string(out)
}

// Scrape never returns nil; failures are carried in PageResult.Error.
func (s *WebScraper) Scrape(ctx context.Context, url string) *PageResult {
	s.logger.Info("Scraping", map[string]interface{}{"url": url})

	result, err := s.scrape(ctx, url)
	if err != nil {
		s.logger.Error("Scrape failed", map[string]interface{}{"url": url, "error": err})
		metrics.ToolCalls.WithLabelValues(WebScraperName, "error").Inc()
		return &PageResult{URL: url, Error: err.Error()}
	}
	metrics.ToolCalls.WithLabelValues(WebScraperName, "success").Inc()
	return result
}

func (s *WebScraper) scrape(ctx context.Context, url string) (*PageResult, error) {
	body, contentType, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = NoTitle
	}

	paragraphs := make([]string, 0, s.config.MaxParagraphs)
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if utf8.RuneCountInString(text) > s.config.MinParagraphLength {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < s.config.MaxParagraphs
	})

	return &PageResult{URL: url, Title: title, Paragraphs: paragraphs}, nil
}

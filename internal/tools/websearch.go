package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	commonhttp "offer-crew/internal/common/http"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/metrics"
)

const (
	WebSearchName        = "DuckDuckGoSearch"
	DefaultSearchBaseURL = "https://html.duckduckgo.com/html"
	DefaultUserAgent     = "Mozilla"
	DefaultSearchTimeout = 100 * time.Second
	DefaultSearchResults = 10

	providerDomain = "duckduckgo.com"
)

var absoluteLinkRegex = regexp.MustCompile(`^https?://`)

type WebSearchConfig struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	MaxResults   int
	MaxBodyBytes int64
}

// WebSearch queries the DuckDuckGo HTML endpoint and returns result links.
type WebSearch struct {
	config WebSearchConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewWebSearch(cfg WebSearchConfig, log logger.Logger) *WebSearch {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSearchBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSearchTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultSearchResults
	}
	return &WebSearch{
		config: cfg,
		client: commonhttp.NewClient(cfg.Timeout, cfg.UserAgent, cfg.MaxBodyBytes),
		logger: log,
	}
}

func (s *WebSearch) Name() string { return WebSearchName }

func (s *WebSearch) Description() string {
	return "Performs a web search using DuckDuckGo and returns a list of URLs."
}

func (s *WebSearch) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search string to send to DuckDuckGo.",
			},
		},
		"required": []string{"query"},
	}
}

// Call runs Search with the "query" argument and returns a JSON array of URLs.
func (s *WebSearch) Call(ctx context.Context, arguments string) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		// some models send the bare query instead of an object
		args.Query = strings.Trim(strings.TrimSpace(arguments), `"`)
	}

	links := s.Search(ctx, args.Query)
	out, _ := json.Marshal(links)
	return string(out)
}

// Search returns up to MaxResults distinct absolute result links. Failures are
// logged and yield an empty list.
func (s *WebSearch) Search(ctx context.Context, query string) []string {
	s.logger.Info("Searching", map[string]interface{}{"query": query})

	searchURL := s.config.BaseURL + "?q=" + quote(strings.ReplaceAll(query, `"`, ""))
	body, _, err := s.client.Get(ctx, searchURL)
	if err != nil {
		s.logger.Error("Search failed", map[string]interface{}{"query": query, "error": err})
		metrics.ToolCalls.WithLabelValues(WebSearchName, "error").Inc()
		return []string{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Search failed", map[string]interface{}{"query": query, "error": err})
		metrics.ToolCalls.WithLabelValues(WebSearchName, "error").Inc()
		return []string{}
	}

	links := extractLinks(doc, s.config.MaxResults)
	metrics.ToolCalls.WithLabelValues(WebSearchName, "success").Inc()
	s.logger.Debug("Search completed", map[string]interface{}{"query": query, "links": len(links)})
	return links
}

// extractLinks keeps absolute links off the provider's domain, in page order
// and repeats included, up to limit. The orchestrator drops repeats.
func extractLinks(doc *goquery.Document, limit int) []string {
	links := make([]string, 0, limit)
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !absoluteLinkRegex.MatchString(href) || strings.Contains(href, providerDomain) {
			return true
		}
		links = append(links, href)
		return len(links) < limit
	})
	return links
}

// quote percent-encodes everything except unreserved characters and "/".
func quote(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, "%2F", "/")
}

// Package tasks builds the per-stage work descriptors handed to the runtime.
package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"offer-crew/internal/agents"
	"offer-crew/internal/models"
)

// JobType is the Zeebe service task type that executes one agent task.
const JobType = "execute-agent-task"

type Kind string

const (
	KindSearch      Kind = "search"
	KindScrape      Kind = "scrape"
	KindConsolidate Kind = "consolidate"
	KindAnalyze     Kind = "analyze"
)

// Task binds an instruction, its agent and the schema pair used to decode the
// agent's answer.
type Task struct {
	Name           string       `json:"name"`
	Kind           Kind         `json:"kind"`
	Description    string       `json:"description"`
	ExpectedOutput string       `json:"expectedOutput"`
	Agent          agents.Agent `json:"agent"`
	Input          interface{}  `json:"input"`
	InputSchema    string       `json:"inputSchema"`
	OutputSchema   string       `json:"outputSchema"`
}

func NewSearchTask(query string, maxResults int) (*Task, error) {
	input, err := models.NewSearchQuery(query, maxResults)
	if err != nil {
		return nil, err
	}
	return &Task{
		Name: string(KindSearch),
		Kind: KindSearch,
		Description: fmt.Sprintf("Use the DuckDuckGo Search Specialist to search for: '%s' "+
			"and run the tool with the query string.", input.Query),
		ExpectedOutput: fmt.Sprintf("SearchResults (list of up to %d URLs with titles and snippets).", input.MaxResults),
		Agent:          agents.SearchSpecialist(),
		Input:          input,
		InputSchema:    models.SchemaSearchQuery,
		OutputSchema:   models.SchemaSearchResults,
	}, nil
}

// NewScrapeTask asks the scraper to fill fields from url. When selectors is
// empty the field names double as extraction hints.
func NewScrapeTask(url string, fields []string, selectors []string) (*Task, error) {
	if len(selectors) == 0 {
		selectors = fields
	}
	input, err := models.NewScrapeRequest(url, selectors, nil)
	if err != nil {
		return nil, err
	}

	wanted := strings.Join(fields, ", ")
	if wanted == "" {
		wanted = "the offer details"
	}
	return &Task{
		Name: fmt.Sprintf("%s:%s", KindScrape, url),
		Kind: KindScrape,
		Description: fmt.Sprintf("Use the Web Scraper to extract the following fields from %s: %s. "+
			"Use CSS selectors or other scraping techniques to fill these fields. "+
			"Return the result as a ScrapeResponse with key-value pairs.", url, wanted),
		ExpectedOutput: "ScrapeResponse (structured scraped data).",
		Agent:          agents.WebScraper(),
		Input:          input,
		InputSchema:    models.SchemaScrapeRequest,
		OutputSchema:   models.SchemaScrapeResponse,
	}, nil
}

func NewConsolidationTask(responses []models.ScrapeResponse) *Task {
	if responses == nil {
		responses = []models.ScrapeResponse{}
	}
	return &Task{
		Name:           string(KindConsolidate),
		Kind:           KindConsolidate,
		Description:    "Consolidate structured data from multiple scrape responses into a unified dataset.",
		ExpectedOutput: "ConsolidatedData (merged structured data with summary).",
		Agent:          agents.DataConsolidator(),
		Input:          &models.ConsolidationRequest{ScrapeResponses: responses},
		InputSchema:    models.SchemaConsolidationRequest,
		OutputSchema:   models.SchemaConsolidatedData,
	}
}

func NewOfferAnalysisTask(offers []map[string]interface{}, tenantContext string, existingOffers []string) (*Task, error) {
	input, err := models.NewOfferAnalysisRequest(offers, tenantContext, existingOffers)
	if err != nil {
		return nil, err
	}
	return &Task{
		Name: string(KindAnalyze),
		Kind: KindAnalyze,
		Description: "Analyze the structured data of multiple different offers " +
			"to generate a competitive offer with more relevance.",
		ExpectedOutput: "OfferAnalysisResponse (recommended competitive offer).",
		Agent:          agents.OfferAnalyst(),
		Input:          input,
		InputSchema:    models.SchemaOfferAnalysisRequest,
		OutputSchema:   models.SchemaOfferAnalysisResponse,
	}, nil
}

// Prompt renders the user message for the task: the instruction, the input
// record, the expected output and the JSON Schema the answer must satisfy.
func (t *Task) Prompt() string {
	var b strings.Builder
	b.WriteString(t.Description)

	if t.Input != nil {
		if data, err := json.MarshalIndent(t.Input, "", "  "); err == nil {
			fmt.Fprintf(&b, "\n\nInput (%s):\n%s", t.InputSchema, data)
		}
	}

	fmt.Fprintf(&b, "\n\nExpected output: %s", t.ExpectedOutput)
	if schema, err := models.Schema(t.OutputSchema); err == nil {
		if data, err := json.Marshal(schema); err == nil {
			fmt.Fprintf(&b, "\nThe answer must be a JSON document matching this JSON Schema:\n%s", data)
		}
	}
	return b.String()
}

// Descriptor summarizes one task kind for the task registry.
type Descriptor struct {
	Kind           Kind     `json:"kind" yaml:"kind"`
	JobType        string   `json:"jobType" yaml:"jobType"`
	Agent          string   `json:"agent" yaml:"agent"`
	AgentRole      string   `json:"agentRole" yaml:"agentRole"`
	Description    string   `json:"description" yaml:"description"`
	ExpectedOutput string   `json:"expectedOutput" yaml:"expectedOutput"`
	InputSchema    string   `json:"inputSchema" yaml:"inputSchema"`
	OutputSchema   string   `json:"outputSchema" yaml:"outputSchema"`
	Tools          []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Catalog lists one descriptor per task kind in pipeline order.
func Catalog() []Descriptor {
	search, _ := NewSearchTask("example", models.DefaultMaxResults)
	scrape, _ := NewScrapeTask("https://example.com", nil, nil)
	consolidate := NewConsolidationTask(nil)
	analyze, _ := NewOfferAnalysisTask(nil, "", nil)

	out := make([]Descriptor, 0, 4)
	for _, t := range []*Task{search, scrape, consolidate, analyze} {
		out = append(out, Descriptor{
			Kind:           t.Kind,
			JobType:        JobType,
			Agent:          t.Agent.Key,
			AgentRole:      t.Agent.Role,
			Description:    t.Description,
			ExpectedOutput: t.ExpectedOutput,
			InputSchema:    t.InputSchema,
			OutputSchema:   t.OutputSchema,
			Tools:          t.Agent.Tools,
		})
	}
	return out
}

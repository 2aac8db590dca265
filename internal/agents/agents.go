// Package agents defines the LLM-backed actors of the offer pipeline.
package agents

import (
	"fmt"
	"strings"

	"offer-crew/internal/tools"
)

// Agent is a role profile. Tools are referenced by name and resolved by the
// runtime, so an Agent can travel inside Zeebe job variables.
type Agent struct {
	Key       string   `json:"key"`
	Role      string   `json:"role"`
	Goal      string   `json:"goal"`
	Backstory string   `json:"backstory"`
	Tools     []string `json:"tools,omitempty"`
}

const (
	KeySearchSpecialist = "search_specialist"
	KeyWebScraper       = "web_scraper"
	KeyDataConsolidator = "data_consolidator"
	KeyOfferAnalyst     = "offer_analyst"
)

func SearchSpecialist() Agent {
	return Agent{
		Key:  KeySearchSpecialist,
		Role: "DuckDuckGo Search Specialist",
		Goal: "Generate a short, effective search string to query DuckDuckGo and use the DuckDuckGoSearch tool to return a structured list of URLs.",
		Backstory: "You are an expert in formulating search engine queries for DuckDuckGo. " +
			"You receive a SearchQuery object containing the query details " +
			"and return a SearchResults object with the extracted URLs.",
		Tools: []string{tools.WebSearchName},
	}
}

func WebScraper() Agent {
	return Agent{
		Key:  KeyWebScraper,
		Role: "Web Scraper Specialist",
		Goal: "Scrape relevant information from a webpage and fill it into a structured data object.",
		Backstory: "You are a skilled web scraper capable of extracting structured data from webpages. " +
			"You receive a ScrapeRequest object with the URL and extraction parameters, " +
			"and return a ScrapeResponse object containing the structured data.",
		Tools: []string{tools.WebScraperName},
	}
}

func DataConsolidator() Agent {
	return Agent{
		Key:  KeyDataConsolidator,
		Role: "Data Consolidator Specialist",
		Goal: "Merge structured data from multiple sources into a unified, validated data object.",
		Backstory: "You consolidate and validate structured data received from multiple sources. " +
			"You handle missing or inconsistent data by either filling it intelligently or removing it as necessary. " +
			"Input: list of ScrapeResponse objects. Output: ConsolidatedData object.",
	}
}

func OfferAnalyst() Agent {
	return Agent{
		Key:  KeyOfferAnalyst,
		Role: "Competitive Offer Analyst",
		Goal: "Analyze multiple structured offers and generate a competitive offer as structured data.",
		Backstory: "You analyze structured data representing offers from various sources. " +
			"You apply analytical reasoning to create a new competitive offer that is more relevant and appealing. " +
			"Input: OfferAnalysisRequest object. Output: OfferAnalysisResponse object.",
	}
}

// All returns every agent profile.
func All() []Agent {
	return []Agent{SearchSpecialist(), WebScraper(), DataConsolidator(), OfferAnalyst()}
}

// SystemPrompt renders the system message sent before every task.
func (a Agent) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n%s\n\nYour personal goal is: %s\n", a.Role, a.Backstory, a.Goal)
	if len(a.Tools) > 0 {
		fmt.Fprintf(&b, "\nYou can call these tools: %s. Call a tool whenever it helps you answer.\n", strings.Join(a.Tools, ", "))
	}
	b.WriteString("\nWhen you give your final answer, respond with a single JSON document and nothing else.")
	return b.String()
}

func (a Agent) HasTools() bool {
	return len(a.Tools) > 0
}

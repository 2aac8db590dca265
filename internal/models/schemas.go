package models

import (
	"fmt"
	"sort"
)

// Schema names used by task definitions and the output decoder.
const (
	SchemaSearchQuery           = "SearchQuery"
	SchemaSearchResultItem      = "SearchResultItem"
	SchemaSearchResults         = "SearchResults"
	SchemaScrapeRequest         = "ScrapeRequest"
	SchemaScrapeResponse        = "ScrapeResponse"
	SchemaConsolidationRequest  = "ConsolidationRequest"
	SchemaConsolidatedData      = "ConsolidatedData"
	SchemaOfferAnalysisRequest  = "OfferAnalysisRequest"
	SchemaOfferAnalysisResponse = "OfferAnalysisResponse"
)

const urlPattern = "^https?://"

func urlProperty() map[string]interface{} {
	return map[string]interface{}{"type": "string", "pattern": urlPattern, "minLength": 8}
}

func optionalString() map[string]interface{} {
	return map[string]interface{}{"type": []interface{}{"string", "null"}}
}

func objectArray() map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}}
}

func searchResultItemSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"url"},
		"properties": map[string]interface{}{
			"url":     urlProperty(),
			"title":   optionalString(),
			"snippet": optionalString(),
		},
	}
}

func scrapeResponseSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"url", "data"},
		"properties": map[string]interface{}{
			"url":   urlProperty(),
			"data":  map[string]interface{}{"type": "object"},
			"error": optionalString(),
		},
	}
}

var schemas = map[string]func() map[string]interface{}{
	SchemaSearchQuery: func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"query"},
			"properties": map[string]interface{}{
				"query":       map[string]interface{}{"type": "string", "minLength": 1},
				"max_results": map[string]interface{}{"type": []interface{}{"integer", "null"}, "minimum": 0},
			},
		}
	},
	SchemaSearchResultItem: searchResultItemSchema,
	SchemaSearchResults: func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"results"},
			"properties": map[string]interface{}{
				"results": map[string]interface{}{"type": "array", "items": searchResultItemSchema()},
			},
		}
	},
	SchemaScrapeRequest: func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"url"},
			"properties": map[string]interface{}{
				"url":       urlProperty(),
				"selectors": map[string]interface{}{"type": []interface{}{"array", "null"}, "items": map[string]interface{}{"type": "string"}},
			},
		}
	},
	SchemaScrapeResponse: scrapeResponseSchema,
	SchemaConsolidationRequest: func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"scrape_responses"},
			"properties": map[string]interface{}{
				"scrape_responses": map[string]interface{}{"type": "array", "items": scrapeResponseSchema()},
			},
		}
	},
	SchemaConsolidatedData: func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"consolidated_items"},
			"properties": map[string]interface{}{
				"consolidated_items": objectArray(),
				"summary":            optionalString(),
			},
		}
	},
	SchemaOfferAnalysisRequest: func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"offers"},
			"properties": map[string]interface{}{
				"offers":          objectArray(),
				"tenant_context":  optionalString(),
				"existing_offers": map[string]interface{}{"type": []interface{}{"array", "null"}, "items": map[string]interface{}{"type": "string"}},
			},
		}
	},
	SchemaOfferAnalysisResponse: func() map[string]interface{} {
		return map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"recommended_offer"},
			"properties": map[string]interface{}{
				"recommended_offer": map[string]interface{}{"type": "object"},
				"rationale":         optionalString(),
			},
		}
	},
}

// Schema returns a fresh copy of the named JSON Schema document.
func Schema(name string) (map[string]interface{}, error) {
	build, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema: %s", name)
	}
	return build(), nil
}

func SchemaNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package decode

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-crew/internal/models"
)

const scrapeJSON = `{"url": "http://x.com", "data": {"price": "10 USD"}}`

func TestIntoRules(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		rule Rule
	}{
		{"direct", scrapeJSON, RuleDirect},
		{"direct with whitespace", "\n  " + scrapeJSON + "  \n", RuleDirect},
		{"bytes", []byte(scrapeJSON), RuleDirect},
		{"fenced with language tag", "```json\n" + scrapeJSON + "\n```", RuleStripFence},
		{"fenced without tag", "```" + scrapeJSON + "```", RuleStripFence},
		{"label", "ScrapeResponse: " + scrapeJSON, RuleStripLabel},
		{"fenced label", "```ScrapeResponse: " + scrapeJSON + "```", RuleStripLabel},
		{"embedded in prose", "Here is what I found on the page " + scrapeJSON + " hope it helps.", RuleEmbedded},
	}

	want := &models.ScrapeResponse{URL: "http://x.com", Data: map[string]interface{}{"price": "10 USD"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule, err := Into[models.ScrapeResponse](tt.raw, models.SchemaScrapeResponse)
			require.NoError(t, err)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, want, got)
		})
	}
}

func TestIntoStructuredMatchesText(t *testing.T) {
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(scrapeJSON), &parsed))

	fromMap, rule, err := Into[models.ScrapeResponse](parsed, models.SchemaScrapeResponse)
	require.NoError(t, err)
	assert.Equal(t, RuleStructured, rule)

	fromText, _, err := Into[models.ScrapeResponse](scrapeJSON, models.SchemaScrapeResponse)
	require.NoError(t, err)

	assert.Equal(t, fromText, fromMap)
}

func TestIntoTyped(t *testing.T) {
	in := &models.OfferAnalysisResponse{RecommendedOffer: map[string]interface{}{"discount": "15%"}}

	got, rule, err := Into[models.OfferAnalysisResponse](in, models.SchemaOfferAnalysisResponse)
	require.NoError(t, err)
	assert.Equal(t, RuleTyped, rule)
	assert.Same(t, in, got)

	gotValue, rule, err := Into[models.OfferAnalysisResponse](*in, models.SchemaOfferAnalysisResponse)
	require.NoError(t, err)
	assert.Equal(t, RuleTyped, rule)
	assert.Equal(t, in, gotValue)

	_, _, err = Into[models.OfferAnalysisResponse](&models.OfferAnalysisResponse{}, models.SchemaOfferAnalysisResponse)
	assert.Error(t, err)
}

func TestIntoFailures(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		_, _, err := Into[models.SearchResults]("I could not find anything useful.", models.SchemaSearchResults)
		require.Error(t, err)

		var decodeErr *Error
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, models.SchemaSearchResults, decodeErr.Schema)
		assert.Contains(t, decodeErr.Rules, RuleDirect)
		assert.Contains(t, err.Error(), "SearchResults")
	})

	t.Run("schema mismatch stops at first parse", func(t *testing.T) {
		_, rule, err := Into[models.SearchResults](`{"results": [{"url": "not-a-url"}]}`, models.SchemaSearchResults)
		require.Error(t, err)
		assert.Equal(t, RuleDirect, rule)

		var decodeErr *Error
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, []Rule{RuleDirect}, decodeErr.Rules)
	})

	t.Run("missing required field", func(t *testing.T) {
		_, _, err := Into[models.ConsolidatedData](`{"summary": "nothing"}`, models.SchemaConsolidatedData)
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := Into[models.ConsolidatedData]("   ", models.SchemaConsolidatedData)
		assert.Error(t, err)
		_, _, err = Into[models.ConsolidatedData](nil, models.SchemaConsolidatedData)
		assert.Error(t, err)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, _, err := Into[models.ConsolidatedData](42, models.SchemaConsolidatedData)
		assert.Error(t, err)
	})

	t.Run("unknown schema", func(t *testing.T) {
		_, _, err := Into[models.ConsolidatedData](`{"consolidated_items": []}`, "Unknown")
		assert.Error(t, err)
	})
}

func TestIntoEmptyConsolidation(t *testing.T) {
	got, _, err := Into[models.ConsolidatedData](`{"consolidated_items": []}`, models.SchemaConsolidatedData)
	require.NoError(t, err)
	assert.Empty(t, got.ConsolidatedItems)
	assert.NotNil(t, got.ConsolidatedItems)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": "}"}`, extractJSON(`prefix {"a": "}"} suffix`))
	assert.Equal(t, `{"a": {"b": 1}}`, extractJSON(`x {"a": {"b": 1}} {"c": 2}`))
	assert.Empty(t, extractJSON(`{"unterminated": true`))
	assert.Empty(t, extractJSON("no json here"))

	// braces in prose before the document are skipped
	assert.Equal(t, `{"recommended_offer":{"price":"9"}}`,
		extractJSON(`use {brand} tone: {"recommended_offer":{"price":"9"}}`))
	assert.Equal(t, `{"a": 1}`, extractJSON(`{ note: see below {"a": 1}`))
	assert.Empty(t, extractJSON(`{brand} and {tone}`))
}

func TestIntoEmbeddedAfterProseBraces(t *testing.T) {
	raw := `Kept the {brand} voice as asked: {"recommended_offer":{"price":"9"},"rationale":"undercut"}`

	got, rule, err := Into[models.OfferAnalysisResponse](raw, models.SchemaOfferAnalysisResponse)
	require.NoError(t, err)
	assert.Equal(t, RuleEmbedded, rule)
	assert.Equal(t, "9", got.RecommendedOffer["price"])
	assert.Equal(t, "undercut", got.Rationale)
}

func TestIntoWithField(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		rule Rule
	}{
		{"missing url", `{"data": {"price": "10 USD"}}`, RuleDirect},
		{"invalid url", `{"url": "the offers page", "data": {"price": "10 USD"}}`, RuleDirect},
		{"other url", scrapeJSON, RuleDirect},
		{"fenced", "```json\n{\"data\": {\"price\": \"10 USD\"}}\n```", RuleStripFence},
		{"structured", map[string]interface{}{"data": map[string]interface{}{"price": "10 USD"}}, RuleStructured},
		{"typed", &models.ScrapeResponse{Data: map[string]interface{}{"price": "10 USD"}}, RuleTyped},
	}

	want := &models.ScrapeResponse{URL: "https://shop.example.com/offer", Data: map[string]interface{}{"price": "10 USD"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule, err := Into[models.ScrapeResponse](tt.raw, models.SchemaScrapeResponse,
				WithField("url", "https://shop.example.com/offer"))
			require.NoError(t, err)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, want, got)
		})
	}

	_, _, err := Into[models.ScrapeResponse](`{"data": {"price": "10 USD"}}`, models.SchemaScrapeResponse)
	assert.Error(t, err, "url is still required without the field")
}

func TestStripFence(t *testing.T) {
	s, ok := stripFence("```json\n{\"a\":1}\n```")
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, s)

	_, ok = stripFence(`{"a":1}`)
	assert.False(t, ok)
}

package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-crew/internal/common/validation"
)

func TestNewSearchQuery(t *testing.T) {
	q, err := NewSearchQuery("  pizza offers  ", 0)
	require.NoError(t, err)
	assert.Equal(t, "pizza offers", q.Query)
	assert.Equal(t, DefaultMaxResults, q.MaxResults)

	q, err = NewSearchQuery("pizza", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, q.MaxResults)

	_, err = NewSearchQuery("   ", 5)
	assert.Error(t, err)
}

func TestURLRecordsRejectMalformedURLs(t *testing.T) {
	_, err := NewSearchResultItem("/relative")
	assert.Error(t, err)

	_, err = NewScrapeRequest("ftp://example.com", nil, nil)
	assert.Error(t, err)

	_, err = NewScrapeResponse("not a url", map[string]interface{}{"price": "10"})
	assert.Error(t, err)

	item, err := NewSearchResultItem("https://example.com/deal")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/deal", item.URL)

	resp, err := NewScrapeResponse("http://x.com", nil)
	require.NoError(t, err)
	assert.NotNil(t, resp.Data)
	assert.False(t, resp.Failed())
}

func TestNewFailedScrapeResponse(t *testing.T) {
	resp := NewFailedScrapeResponse("https://example.com/a", errors.New("timeout"))
	assert.Equal(t, "https://example.com/a", resp.URL)
	assert.Empty(t, resp.Data)
	assert.Equal(t, "timeout", resp.Error)
	assert.True(t, resp.Failed())

	resp = NewFailedScrapeResponse("https://example.com/b", nil)
	assert.Equal(t, "scrape failed", resp.Error)
}

func TestSearchResults(t *testing.T) {
	results := &SearchResults{Results: []SearchResultItem{
		{URL: "https://a.com"},
		{URL: "https://b.com"},
		{URL: "https://a.com"},
		{URL: "https://c.com"},
	}}
	require.NoError(t, results.Validate())

	assert.Equal(t, []string{"https://a.com", "https://b.com", "https://a.com", "https://c.com"}, results.URLs())
	assert.Equal(t, []string{"https://a.com", "https://b.com", "https://c.com"}, results.Distinct(0).URLs())
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, results.Distinct(2).URLs())

	bad := &SearchResults{Results: []SearchResultItem{{URL: "#top"}}}
	assert.Error(t, bad.Validate())
}

func TestRequiredFields(t *testing.T) {
	assert.Error(t, (&ConsolidatedData{}).Validate())
	assert.NoError(t, (&ConsolidatedData{ConsolidatedItems: []map[string]interface{}{}}).Validate())

	assert.Error(t, (&OfferAnalysisResponse{Rationale: "cheaper"}).Validate())
	assert.NoError(t, (&OfferAnalysisResponse{RecommendedOffer: map[string]interface{}{}}).Validate())

	req, err := NewOfferAnalysisRequest(nil, "family diner", []string{"10% off"})
	require.NoError(t, err)
	assert.NotNil(t, req.Offers)
}

func TestChatRequest(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		assert.ErrorIs(t, (&ChatRequest{OfferType: "discount"}).Validate(), ErrMissingTenantOrOffer)
		assert.ErrorIs(t, (&ChatRequest{TenantName: "Acme", OfferType: "  "}).Validate(), ErrMissingTenantOrOffer)
		assert.NoError(t, (&ChatRequest{TenantName: "Acme", OfferType: "discount"}).Validate())
	})

	t.Run("search text", func(t *testing.T) {
		req := &ChatRequest{TenantName: "Acme Gym", OfferType: "membership", TenantDetails: "downtown fitness"}
		assert.Equal(t, "Acme Gym membership downtown fitness", req.SearchText())
	})

	t.Run("offer fields", func(t *testing.T) {
		req := &ChatRequest{OfferForm: []interface{}{
			"price",
			map[string]interface{}{"name": "duration"},
			map[string]interface{}{"label": "Perks"},
			42.0,
			nil,
			"",
		}}
		assert.Equal(t, []string{"price", "duration", "Perks", "42"}, req.OfferFields())
	})
}

func TestEnvelope(t *testing.T) {
	ok := NewCompletedEnvelope("run-1", "Acme", &OfferAnalysisResponse{RecommendedOffer: map[string]interface{}{"price": 9}})
	assert.True(t, ok.Succeeded())
	assert.Equal(t, StatusCompleted, ok.Status)
	assert.Empty(t, ok.Error)
	assert.NotEmpty(t, ok.Timestamp)

	failed := NewFailedEnvelope("run-2", "Could not parse output into SearchResults", "SCHEMA_VALIDATION_FAILED", "search")
	assert.False(t, failed.Succeeded())
	assert.Nil(t, failed.Analysis)
	assert.Equal(t, "search", failed.FailedStage)
}

func TestSchemasCompile(t *testing.T) {
	for _, name := range SchemaNames() {
		schema, err := Schema(name)
		require.NoError(t, err)
		assert.NoError(t, validation.CompileSchema(schema), name)
	}
	_, err := Schema("Nope")
	assert.Error(t, err)
	assert.Len(t, SchemaNames(), 9)
}

func TestScrapeResponseSchema(t *testing.T) {
	schema, err := Schema(SchemaScrapeResponse)
	require.NoError(t, err)

	result, err := validation.ValidateDocument(schema, map[string]interface{}{"url": "http://x.com", "data": map[string]interface{}{}})
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Summary())

	result, err = validation.ValidateDocument(schema, map[string]interface{}{"url": "x.com", "data": map[string]interface{}{}})
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

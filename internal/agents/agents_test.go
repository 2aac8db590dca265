package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-crew/internal/tools"
)

func TestProfiles(t *testing.T) {
	all := All()
	require.Len(t, all, 4)

	keys := map[string]bool{}
	for _, a := range all {
		assert.NotEmpty(t, a.Role)
		assert.NotEmpty(t, a.Goal)
		assert.NotEmpty(t, a.Backstory)
		keys[a.Key] = true
	}
	assert.Len(t, keys, 4)

	assert.Equal(t, []string{tools.WebSearchName}, SearchSpecialist().Tools)
	assert.Equal(t, []string{tools.WebScraperName}, WebScraper().Tools)
	assert.False(t, DataConsolidator().HasTools())
	assert.False(t, OfferAnalyst().HasTools())
}

func TestSystemPrompt(t *testing.T) {
	prompt := SearchSpecialist().SystemPrompt()
	assert.Contains(t, prompt, "You are DuckDuckGo Search Specialist.")
	assert.Contains(t, prompt, "DuckDuckGoSearch")
	assert.Contains(t, prompt, "single JSON document")

	assert.NotContains(t, OfferAnalyst().SystemPrompt(), "You can call these tools")
}

func TestAgentRoundTripsThroughJobVariables(t *testing.T) {
	data, err := json.Marshal(WebScraper())
	require.NoError(t, err)

	var got Agent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, WebScraper(), got)
}

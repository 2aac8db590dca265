// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-crew/internal/api"
	"offer-crew/internal/common/camunda"
	"offer-crew/internal/common/config"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/llm"
	"offer-crew/internal/runs"
	"offer-crew/internal/runtime"
	"offer-crew/internal/storage"
	"offer-crew/internal/tools"
	"offer-crew/internal/workflow"

	eat "offer-crew/internal/workers/agents/execute-agent-task"
)

// ==========================
// Fake Internet
// ==========================

// offerSite serves two offer pages and one missing page.
func offerSite(t *testing.T) *httptest.Server {
	pages := map[string]string{
		"/offer/alpha": `<html><head><title>Alpha Gym</title></head><body>
<p>Monthly membership for 29 EUR including sauna access.</p></body></html>`,
		"/offer/beta": `<html><head><title>Beta Fitness</title></head><body>
<p>Annual plan at 249 EUR with two free personal training sessions.</p></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// searchEngine answers every query with links to the offer site.
func searchEngine(t *testing.T, site string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body>
<a href="https://duckduckgo.com/y.js?ad=1">ad</a>
<a href="%[1]s/offer/alpha">alpha</a>
<a href="%[1]s/offer/beta">beta</a>
<a href="%[1]s/offer/gone">gone</a>
</body></html>`, site)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeAzure plays all four agents. Tool-using agents first ask for their
// tool and answer from its result on the next turn.
type fakeAzure struct {
	site        string
	failAnalyst atomic.Bool
	calls       atomic.Int32
}

func (f *fakeAzure) serve(t *testing.T) *httptest.Server {
	pageURL := regexp.MustCompile(regexp.QuoteMeta(f.site) + `/offer/[a-z]+`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.Header.Get("api-key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req llm.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		system := req.Messages[0].Content
		last := req.Messages[len(req.Messages)-1]

		var msg llm.ChatMessage
		switch {
		case strings.Contains(system, "DuckDuckGo Search Specialist"):
			if last.Role == "user" && len(req.Tools) > 0 {
				msg = toolCall(tools.WebSearchName, `{"query":"gym membership offers"}`)
				break
			}
			var links []string
			_ = json.Unmarshal([]byte(last.Content), &links)
			results := make([]map[string]string, 0, len(links))
			for _, l := range links {
				results = append(results, map[string]string{"url": l})
			}
			msg = answer(map[string]interface{}{"results": results})

		case strings.Contains(system, "Web Scraper Specialist"):
			if last.Role == "user" && len(req.Tools) > 0 {
				u := pageURL.FindString(req.Messages[1].Content)
				msg = toolCall(tools.WebScraperName, fmt.Sprintf(`{"url":%q}`, u))
				break
			}
			var page map[string]interface{}
			_ = json.Unmarshal([]byte(last.Content), &page)
			if errMsg, ok := page["error"].(string); ok {
				msg = answer(map[string]interface{}{"url": page["url"], "data": map[string]interface{}{}, "error": errMsg})
				break
			}
			msg = answer(map[string]interface{}{
				"url":  page["url"],
				"data": map[string]interface{}{"title": page["title"], "price": "see page"},
			})

		case strings.Contains(system, "Data Consolidator Specialist"):
			msg = answer(map[string]interface{}{
				"consolidated_items": []map[string]string{{"title": "Alpha Gym"}, {"title": "Beta Fitness"}},
				"summary":            "two gym offers",
			})

		case strings.Contains(system, "Competitive Offer Analyst"):
			if f.failAnalyst.Load() {
				http.Error(w, "deployment overloaded", http.StatusServiceUnavailable)
				return
			}
			msg = answer(map[string]interface{}{
				"recommended_offer": map[string]string{"title": "Acme Flex", "price": "24 EUR"},
				"rationale":         "undercuts Alpha Gym and keeps the sauna",
			})

		default:
			http.Error(w, "unknown agent", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(llm.ChatCompletionResponse{
			ID:      "chatcmpl-test",
			Object:  "chat.completion",
			Choices: []llm.Choice{{FinishReason: "stop", Message: msg}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func toolCall(name, arguments string) llm.ChatMessage {
	tc := llm.ToolCall{ID: "call_1", Type: "function"}
	tc.Function.Name = name
	tc.Function.Arguments = arguments
	return llm.ChatMessage{Role: "assistant", ToolCalls: []llm.ToolCall{tc}}
}

func answer(v interface{}) llm.ChatMessage {
	b, _ := json.Marshal(v)
	return llm.ChatMessage{Role: "assistant", Content: "```json\n" + string(b) + "\n```"}
}

// ==========================
// Harness
// ==========================

type harness struct {
	azure  *fakeAzure
	redis  *redis.Client
	server *httptest.Server
}

func testConfig(azureURL, searchURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "Offer Crew", Framework: "offer-crew"},
		LLM: config.LLMConfig{
			Endpoint:   azureURL,
			ModelName:  "azure/gpt-4o",
			APIKey:     "test-key",
			APIVersion: "2024-02-01",
			Timeout:    5000,
		},
		Agents:   config.AgentsConfig{MaxIterations: 3, TaskTimeout: 10000},
		Pipeline: config.PipelineConfig{Runtime: config.RuntimeLLM, MaxResults: 5, ScrapeConcurrency: 2},
		Search:   config.SearchConfig{BaseURL: searchURL, Timeout: 5000, MaxResults: 5},
		Scraper:  config.ScraperConfig{Timeout: 5000, MaxParagraphs: 5, MinParagraphLength: 20},
	}
}

func newHarness(t *testing.T, rtFor func(cfg *config.Config, log logger.Logger) runtime.Runtime) *harness {
	log := logger.NewTestLogger(t)

	site := offerSite(t)
	azure := &fakeAzure{site: site.URL}
	cfg := testConfig(azure.serve(t).URL, searchEngine(t, site.URL).URL)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	tracker := runs.NewTracker(rdb, runs.DefaultKeyPrefix, time.Hour)

	orchestrator := workflow.New(rtFor(cfg, log), workflow.Config{
		MaxResults:        cfg.Pipeline.MaxResults,
		ScrapeConcurrency: cfg.Pipeline.ScrapeConcurrency,
	}, log,
		workflow.WithStore(storage.NewLogStore(log)),
		workflow.WithStateRecorder(tracker),
	)

	srv := httptest.NewServer(api.NewServer(orchestrator, tracker, api.Config{
		AppName:        cfg.App.Name,
		Framework:      cfg.App.Framework,
		RequestTimeout: time.Minute,
	}, log).Handler())
	t.Cleanup(srv.Close)

	return &harness{azure: azure, redis: rdb, server: srv}
}

func llmRuntime(cfg *config.Config, log logger.Logger) runtime.Runtime {
	return runtime.NewAgentRuntimeFromConfig(cfg, log)
}

const chatBody = `{
  "tenantName": "Acme",
  "tenantDetails": "Neighbourhood gym with sauna",
  "offerForm": [{"name": "title"}, {"name": "price"}],
  "offerType": "membership",
  "existingOffers": ["Acme Basic 35 EUR"]
}`

func (h *harness) chat(t *testing.T) (int, map[string]interface{}) {
	t.Helper()
	res, err := http.Post(h.server.URL+"/chat", "application/json", strings.NewReader(chatBody))
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func (h *harness) latestRun(t *testing.T, runID string) *runs.Snapshot {
	t.Helper()
	res, err := http.Get(h.server.URL + "/runs/" + runID)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var snap runs.Snapshot
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snap))
	return &snap
}

// ==========================
// In-process pipeline
// ==========================

func TestE2E_OfferRecommendation(t *testing.T) {
	h := newHarness(t, llmRuntime)

	status, out := h.chat(t)
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "success", out["status"])

	env := out["response"].(map[string]interface{})
	assert.Equal(t, "completed", env["status"])
	assert.Equal(t, "Acme", env["tenantName"])

	analysis := env["analysis"].(map[string]interface{})
	assert.Equal(t, "undercuts Alpha Gym and keeps the sauna", analysis["rationale"])
	assert.Equal(t, "Acme Flex", analysis["recommended_offer"].(map[string]interface{})["title"])

	runID, _ := env["runId"].(string)
	require.NotEmpty(t, runID)
	snap := h.latestRun(t, runID)
	assert.Equal(t, "COMPLETED", snap.State)
	assert.Equal(t, "Acme", snap.TenantName)

	// search: 2 turns, scrape: 3 pages x 2 turns, consolidate: 1, analyze: 1
	assert.EqualValues(t, 10, h.azure.calls.Load())
}

func TestE2E_AnalystFailure(t *testing.T) {
	h := newHarness(t, llmRuntime)
	h.azure.failAnalyst.Store(true)

	status, out := h.chat(t)
	require.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, out["detail"], "Competitive Offer Analyst")

	// the failure response carries no run id, so find it through Redis
	keys, err := h.redis.Keys(context.Background(), runs.DefaultKeyPrefix+"*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	snap := h.latestRun(t, strings.TrimPrefix(keys[0], runs.DefaultKeyPrefix))
	assert.Equal(t, "FAILED", snap.State)
	assert.NotEmpty(t, snap.Error)
}

func TestE2E_RejectsIncompleteRequest(t *testing.T) {
	h := newHarness(t, llmRuntime)

	res, err := http.Post(h.server.URL+"/chat", "application/json", strings.NewReader(`{"tenantName":"Acme"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Zero(t, h.azure.calls.Load())
}

func TestE2E_Endpoints(t *testing.T) {
	h := newHarness(t, llmRuntime)

	for _, path := range []string{"/", "/health", "/ready", "/metrics"} {
		res, err := http.Get(h.server.URL + path)
		require.NoError(t, err, path)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}

	res, err := http.Get(h.server.URL + "/runs/unknown")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

// ==========================
// Zeebe-backed pipeline
// ==========================

// TestE2E_ZeebeRuntime routes every task through a running broker and the
// execute-agent-task worker. Set ZEEBE_ADDRESS to run it.
func TestE2E_ZeebeRuntime(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Zeebe E2E test in short mode")
	}
	address := os.Getenv("ZEEBE_ADDRESS")
	if address == "" {
		t.Skip("ZEEBE_ADDRESS not set")
	}

	h := newHarness(t, func(cfg *config.Config, log logger.Logger) runtime.Runtime {
		cfg.Camunda = config.CamundaConfig{
			BrokerAddress:  address,
			ProcessID:      "offer-crew-agent-task",
			BPMNPath:       "../../configs/bpmn/agent-task.bpmn",
			RequestTimeout: 60000,
		}

		zb, err := camunda.Connect(cfg.Camunda, 3, log)
		require.NoError(t, err)
		t.Cleanup(func() { _ = zb.Close() })

		_, err = zb.DeployResource(context.Background(), cfg.Camunda.BPMNPath)
		require.NoError(t, err)

		handler := eat.NewHandler(&eat.Config{Timeout: time.Minute}, runtime.NewAgentRuntimeFromConfig(cfg, log), log)
		w := camunda.StartWorker(zb.GetClient(), eat.TaskType, config.WorkerConfig{
			Enabled:       true,
			MaxJobsActive: 4,
			Timeout:       60000,
		}, handler, log)
		t.Cleanup(w.Stop)

		return runtime.NewZeebeRuntime(zb, cfg.Camunda.ProcessID, log)
	})

	status, out := h.chat(t)
	require.Equal(t, http.StatusOK, status, out)
	env := out["response"].(map[string]interface{})
	assert.Equal(t, "completed", env["status"])
}

package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"offer-crew/internal/common/logger"
	"offer-crew/internal/models"
	"offer-crew/internal/runs"
)

// ==========================
// Test Doubles
// ==========================

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) Run(ctx context.Context, req *models.ChatRequest) *models.Envelope {
	args := m.Called(ctx, req)
	return args.Get(0).(*models.Envelope)
}

type mapLookup map[string]*runs.Snapshot

func (m mapLookup) Get(ctx context.Context, runID string) (*runs.Snapshot, error) {
	if runID == "broken" {
		return nil, stderrors.New("redis down")
	}
	snap, ok := m[runID]
	if !ok {
		return nil, runs.ErrRunNotFound
	}
	return snap, nil
}

func newTestServer(t *testing.T, p Pipeline, lookup RunLookup) *Server {
	s := NewServer(p, lookup, Config{AppName: "Offer Crew", Framework: "offer-crew"}, logger.NewTestLogger(t))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

const validBody = `{"tenantName":"Acme","tenantDetails":"gym","offerForm":["price"],"offerType":"membership","existingOffers":[]}`

// ==========================
// POST /chat
// ==========================

func TestChat_Success(t *testing.T) {
	p := &mockPipeline{}
	env := models.NewCompletedEnvelope("r1", "Acme", &models.OfferAnalysisResponse{
		RecommendedOffer: map[string]interface{}{"price": "9"},
		Rationale:        "cheaper",
	})
	p.On("Run", mock.Anything, mock.MatchedBy(func(req *models.ChatRequest) bool {
		return req.TenantName == "Acme" && req.OfferType == "membership"
	})).Return(env)

	rec, body := do(t, newTestServer(t, p, nil).Handler(), http.MethodPost, "/chat", validBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "success", body["status"])
	response := body["response"].(map[string]interface{})
	assert.Equal(t, "completed", response["status"])
	assert.Equal(t, "Acme", response["tenantName"])
	assert.Equal(t, "cheaper", response["analysis"].(map[string]interface{})["rationale"])
	p.AssertExpectations(t)
}

func TestChat_PipelineFailure(t *testing.T) {
	p := &mockPipeline{}
	p.On("Run", mock.Anything, mock.Anything).
		Return(models.NewFailedEnvelope("r2", "Search returned no results", "EMPTY_SEARCH_RESULTS", "search"))

	rec, body := do(t, newTestServer(t, p, nil).Handler(), http.MethodPost, "/chat", validBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Search returned no results", body["detail"])
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDetail string
	}{
		{"malformed json", `{"tenantName":`, ""},
		{"missing tenant", `{"offerType":"membership"}`, missingFieldsDetail},
		{"blank offer type", `{"tenantName":"Acme","offerType":"  "}`, missingFieldsDetail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPipeline{}
			rec, body := do(t, newTestServer(t, p, nil).Handler(), http.MethodPost, "/chat", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, body, "detail")
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			p.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestChat_OversizedBody(t *testing.T) {
	p := &mockPipeline{}
	s := NewServer(p, nil, Config{MaxBodyBytes: 512}, logger.NewTestLogger(t))

	padded := `{"tenantName":"Acme","offerType":"membership","tenantDetails":"` + strings.Repeat("a", 4096) + `"}`
	rec, body := do(t, s.Handler(), http.MethodPost, "/chat", padded)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request body exceeds 512 bytes", body["detail"])
	p.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)

	assert.Equal(t, DefaultMaxBodyBytes, NewServer(p, nil, Config{}, logger.NewTestLogger(t)).config.MaxBodyBytes)
}

func TestChat_WrongMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, &mockPipeline{}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ==========================
// Service endpoints
// ==========================

func TestHealthReadyRoot(t *testing.T) {
	h := newTestServer(t, &mockPipeline{}, nil).Handler()

	rec, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "offer-crew", body["framework"])
	assert.Equal(t, "2026-03-01T09:30:00Z", body["timestamp"])

	rec, body = do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	rec, body = do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Offer Crew API is running.", body["message"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &mockPipeline{}, nil).Handler()
	do(t, h, http.MethodGet, "/health", "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRuns(t *testing.T) {
	lookup := mapLookup{"r1": {RunID: "r1", TenantName: "Acme", State: "SCRAPING", UpdatedAt: "2026-03-01T09:30:00Z"}}
	h := newTestServer(t, &mockPipeline{}, lookup).Handler()

	rec, body := do(t, h, http.MethodGet, "/runs/r1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SCRAPING", body["state"])
	assert.Equal(t, "r1", body["runId"])

	rec, _ = do(t, h, http.MethodGet, "/runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/runs/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRuns_TrackingDisabled(t *testing.T) {
	rec, body := do(t, newTestServer(t, &mockPipeline{}, nil).Handler(), http.MethodGet, "/runs/r1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "run tracking is disabled", body["detail"])
}

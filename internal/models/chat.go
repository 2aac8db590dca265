package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMissingTenantOrOffer = errors.New("tenantName and offerType are required")

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	TenantName     string        `json:"tenantName"`
	TenantDetails  string        `json:"tenantDetails"`
	OfferForm      []interface{} `json:"offerForm"`
	OfferType      string        `json:"offerType"`
	ExistingOffers []string      `json:"existingOffers"`
	Metadata       interface{}   `json:"metadata,omitempty"`
}

func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.TenantName) == "" || strings.TrimSpace(r.OfferType) == "" {
		return ErrMissingTenantOrOffer
	}
	return nil
}

// SearchText builds the free-text query for the search stage.
func (r *ChatRequest) SearchText() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", r.TenantName, r.OfferType, r.TenantDetails))
}

// OfferFields flattens the offer form into field names used as scrape hints.
func (r *ChatRequest) OfferFields() []string {
	fields := make([]string, 0, len(r.OfferForm))
	for _, entry := range r.OfferForm {
		switch v := entry.(type) {
		case nil:
			continue
		case string:
			if s := strings.TrimSpace(v); s != "" {
				fields = append(fields, s)
			}
		case map[string]interface{}:
			if name := fieldName(v); name != "" {
				fields = append(fields, name)
			} else {
				fields = append(fields, fmt.Sprintf("%v", v))
			}
		default:
			fields = append(fields, fmt.Sprintf("%v", v))
		}
	}
	return fields
}

func fieldName(entry map[string]interface{}) string {
	for _, key := range []string{"name", "field", "key", "label"} {
		if s, ok := entry[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Envelope is the final pipeline result. Analysis and Error are mutually exclusive.
type Envelope struct {
	RunID       string                 `json:"runId,omitempty"`
	TenantName  string                 `json:"tenantName,omitempty"`
	Analysis    *OfferAnalysisResponse `json:"analysis,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ErrorCode   string                 `json:"errorCode,omitempty"`
	FailedStage string                 `json:"failedStage,omitempty"`
	Status      string                 `json:"status"`
	Timestamp   string                 `json:"timestamp"`
}

func NewCompletedEnvelope(runID, tenantName string, analysis *OfferAnalysisResponse) *Envelope {
	return &Envelope{
		RunID:      runID,
		TenantName: tenantName,
		Analysis:   analysis,
		Status:     StatusCompleted,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func NewFailedEnvelope(runID, message, code, stage string) *Envelope {
	if message == "" {
		message = "pipeline failed"
	}
	return &Envelope{
		RunID:       runID,
		Error:       message,
		ErrorCode:   code,
		FailedStage: stage,
		Status:      StatusFailed,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func (e *Envelope) Succeeded() bool {
	return e.Status == StatusCompleted
}

// Package storage holds the sinks that receive scraped pages after the scrape stage.
package storage

import (
	"context"

	"offer-crew/internal/common/logger"
	"offer-crew/internal/models"
)

// LogStore writes a structured log entry per scrape response.
type LogStore struct {
	logger logger.Logger
}

func NewLogStore(log logger.Logger) *LogStore {
	return &LogStore{logger: log}
}

func (s *LogStore) Store(ctx context.Context, tenantName string, responses []models.ScrapeResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	failed := 0
	for _, resp := range responses {
		fields := map[string]interface{}{
			"tenantName": tenantName,
			"url":        resp.URL,
			"fields":     len(resp.Data),
		}
		if resp.Failed() {
			failed++
			fields["error"] = resp.Error
			s.logger.Warn("Scraped page failed", fields)
			continue
		}
		s.logger.Debug("Scraped page stored", fields)
	}

	s.logger.Info("Stored scraped data", map[string]interface{}{
		"tenantName": tenantName,
		"total":      len(responses),
		"failed":     failed,
	})
	return nil
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Store(context.Context, string, []models.ScrapeResponse) error { return nil }

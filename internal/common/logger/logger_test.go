package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l := New("info", "json", path)
	l.Info("pipeline started", zap.String("tenantName", "Acme"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline started")
	assert.Contains(t, string(data), `"tenantName":"Acme"`)
}

func TestNew_UnwritablePathFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "app.log")

	l := New("debug", "console", path)
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestZapWrapper_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).
		With(map[string]interface{}{"runId": "r-1"}).
		WithError(errors.New("boom"))

	log.Warn("stage failed", map[string]interface{}{
		"stage": "SEARCHING",
		"cause": errors.New("empty"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "r-1", fields["runId"])
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "empty", fields["cause"])
	assert.Equal(t, "SEARCHING", fields["stage"])
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.Info("ignored", nil)
		log.WithFields(nil).Debug("ignored", map[string]interface{}{"k": 1})
	})
}

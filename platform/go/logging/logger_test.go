package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerEmitsCloudLoggingFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "gateway", Level: "debug", Output: &buf})
	require.NoError(t, err)

	logger.Warn("tenant lookup slow", zap.String("tenant", "acme"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "WARNING", entry["severity"])
	require.Equal(t, "gateway", entry["component"])
	require.Equal(t, "acme", entry["tenant"])
	require.Equal(t, "tenant lookup slow", entry["message"])
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(Config{Level: "chatty"})
	require.Error(t, err)
}

func TestRequestLoggerLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := FromContext(r.Context())
		require.True(t, ok)
		if strings.HasSuffix(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 2)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestFromContextOrFallsBackToNop(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NotNil(t, FromRequest(req, nil))
}

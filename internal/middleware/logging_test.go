// internal/middleware/logging_test.go
package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := chimw.RequestID(LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "HTTP Request", entry.Message)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/health", entry.Data["path"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

func TestLogWebSocketLifecycle(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LogWebSocketConnect(logger, "c1", "1.2.3.4:5")
	LogWebSocketDisconnect(logger, "c1", "1.2.3.4:5", errors.New("boom"))

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "WebSocket connected", entries[0].Message)
	assert.Equal(t, "c1", entries[0].Data["conn"])
	assert.Equal(t, "WebSocket disconnected", entries[1].Message)
	assert.EqualError(t, entries[1].Data["error"].(error), "boom")
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RequestIDAndLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-1", RequestID(r.Context()))
		writeJSON(w, http.StatusAccepted, map[string]string{"id": r.PathValue("id")})
	})
	h := requestIDMiddleware(loggingMiddleware(&logger, mux))

	r := httptest.NewRequest(http.MethodGet, "/things/7", nil)
	r.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(requestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "GET /things/{id}", entry["route"])
	assert.Equal(t, float64(http.StatusAccepted), entry["status"])
}

func TestMiddleware_GeneratesIDAndRecovers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := requestIDMiddleware(loggingMiddleware(&logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)
}

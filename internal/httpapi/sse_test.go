package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okunev/bookshelf-bot/internal/jobs"
)

func TestJobStream_SendsConversionFrames(t *testing.T) {
	f := newAPIFixture(t)
	f.queue.Enqueue(jobs.EnqueueRequest{Source: "manual", DedupeKey: "Война и мир|epub"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	// Returns once the request context expires.
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: conversions")
	assert.Contains(t, body, `"Война и мир|epub"`)
	assert.Contains(t, body, `"pending":1`)
}

func TestJobStream_RejectsNonGET(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/jobs/stream", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

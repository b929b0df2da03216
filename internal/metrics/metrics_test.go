package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashnotes-backend/internal/flashcards"
)

func TestCollector_Recorder(t *testing.T) {
	c := NewCollector("test")

	var rec flashcards.Recorder = c
	rec.SynthesisResolved(flashcards.SourceRemote)
	rec.SynthesisResolved(flashcards.SourceFallback)
	rec.SynthesisResolved(flashcards.SourceFallback)
	rec.CardsGenerated(3)
	rec.PersistenceFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Syntheses.WithLabelValues("remote")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Syntheses.WithLabelValues("fallback")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.FlashcardsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PersistenceErrors))
}

func TestCollector_MiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector("test")

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/jobs/123", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/jobs/{id}", "404")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("flashnotes")
	c.CardsGenerated(2)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "flashnotes_flashcards_generated_total 2"))
}

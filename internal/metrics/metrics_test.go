package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGenerator(t *testing.T) {
	ok := generatorRequests.WithLabelValues("openai", "turn", OutcomeSuccess)
	failed := generatorRequests.WithLabelValues("openai", "turn", OutcomeError)
	beforeOK, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveGenerator("openai", "turn", nil, 10*time.Millisecond)
	ObserveGenerator("openai", "turn", errors.New("boom"), time.Second)

	if got := testutil.ToFloat64(ok) - beforeOK; got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(turns.WithLabelValues(OutcomeStale))
	IncTurn(OutcomeStale)
	if got := testutil.ToFloat64(turns.WithLabelValues(OutcomeStale)) - before; got != 1 {
		t.Errorf("Expected turn counter to increase by 1, got %v", got)
	}

	before = testutil.ToFloat64(saves.WithLabelValues("load", OutcomeEmpty))
	IncSave("load", OutcomeEmpty)
	if got := testutil.ToFloat64(saves.WithLabelValues("load", OutcomeEmpty)) - before; got != 1 {
		t.Errorf("Expected save counter to increase by 1, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	IncCue("drama_sting")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `dramahigh_sound_cues_total{cue="drama_sting"}`) {
		t.Errorf("Expected cue counter in output, got:\n%s", body)
	}
}

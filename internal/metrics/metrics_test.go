package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/logging"
)

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		100: "1xx",
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		503: "5xx",
		99:  "other",
		600: "other",
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusClass(code), "code %d", code)
	}
}

func TestObserveRecord(t *testing.T) {
	m := New()
	m.ObserveRecord(200, 120)
	m.ObserveRecord(201, 80)
	m.ObserveRecord(500, 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recorded.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recorded.WithLabelValues("5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.upstreamDuration))
}

func TestAttach_FedByHooks(t *testing.T) {
	m := New()
	hm := hooks.NewManager(logging.New(nil, "silent"))
	m.Attach(hm)

	hm.Emit(context.Background(), hooks.EventInteractionRecorded, map[string]any{
		"statusCode": 404,
		"durationMs": int64(15),
	})
	hm.Emit(context.Background(), hooks.EventInteractionReplayed, map[string]any{
		"statusCode": float64(200),
		"durationMs": float64(30),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.recorded.WithLabelValues("4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replayed.WithLabelValues("2xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.upstreamDuration))
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveReplay(200, 5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `witness_interactions_replayed_total{status_class="2xx"} 1`)
	assert.Contains(t, string(body), `witness_upstream_duration_seconds_bucket{operation="replay"`)
	assert.Contains(t, string(body), "witness_build_info")
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a, b := New(), New()
	a.ObserveRecord(200, 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.recorded.WithLabelValues("2xx")))
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

func TestRecorder(t *testing.T) {
	r := New()

	stats := contracts.NewRunStats()
	stats.AddScanned(42)
	stats.AddProduced(contracts.OriginMomentum, 3)
	stats.AddProduced(contracts.OriginStructural, 5)
	stats.RecordError(contracts.DataUnavailable("momentum", "AAA", contracts.ErrNotAvailable))
	stats.RecordError(contracts.DataUnavailable("momentum", "BBB", contracts.ErrNotAvailable))

	r.ObserveStage(contracts.StateScanning, 150*time.Millisecond)
	r.RecordRun(contracts.StateDone, stats.Snapshot(), 6)
	r.RecordRun(contracts.StateFailed, contracts.RunStatsSnapshot{}, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("FAILED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.softErrors.WithLabelValues("DATA_UNAVAILABLE")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.candidates.WithLabelValues("structural")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.candidates.WithLabelValues("consolidated")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stageDuration))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "screener_runs_total")
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStage(contracts.StateDone, time.Second)
		r.RecordRun(contracts.StateDone, contracts.RunStatsSnapshot{}, 0)
	})
	assert.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

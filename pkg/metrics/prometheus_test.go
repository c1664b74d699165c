package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.RecordBarsDropped("bad_tick", 3)
	r.RecordBarsDropped("bad_tick", 2)
	r.RecordSymbolSplit()
	r.RecordClusterFailure(2)
	r.RecordChampionScore(0.031)

	assert.Equal(t, 5.0, testutil.ToFloat64(r.barsDropped.WithLabelValues("bad_tick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.symbolsSplit))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.clusterFailures.WithLabelValues("2")))
	assert.Equal(t, 0.031, testutil.ToFloat64(r.championScore))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	// promauto on a private registry must not panic on duplicate names
	a := New()
	b := New()
	a.RecordSymbolSplit()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.symbolsSplit))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordDownload("ok")
	r.RecordStageDuration("S1_INTEGRITY", 0.2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `quantmon_bhavcopy_downloads_total{status="ok"} 1`)
	assert.Contains(t, string(body), "quantmon_stage_duration_seconds_bucket")
}

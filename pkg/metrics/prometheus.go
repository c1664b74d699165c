package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the pipeline's Prometheus collectors.
// Each Recorder owns its registry so several can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	barsDropped     *prometheus.CounterVec
	symbolsSplit    prometheus.Counter
	clusterFailures *prometheus.CounterVec
	championScore   prometheus.Gauge
	downloads       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		barsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantmon_bars_dropped_total",
				Help: "Bars removed by the integrity classifier",
			},
			[]string{"reason"},
		),
		symbolsSplit: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quantmon_symbols_split_total",
				Help: "Symbols split into pre/post segments around a corporate event",
			},
		),
		clusterFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantmon_cluster_failures_total",
				Help: "Clusters skipped during selection because prediction failed",
			},
			[]string{"cluster"},
		),
		championScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quantmon_champion_score",
				Help: "Mean top-K predicted return of the last champion cluster",
			},
		),
		downloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantmon_bhavcopy_downloads_total",
				Help: "Bhavcopy download attempts by outcome",
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantmon_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordBarsDropped adds n dropped bars for reason.
func (r *Recorder) RecordBarsDropped(reason string, n int) {
	r.barsDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordSymbolSplit counts one split symbol.
func (r *Recorder) RecordSymbolSplit() {
	r.symbolsSplit.Inc()
}

// RecordClusterFailure counts a skipped cluster.
func (r *Recorder) RecordClusterFailure(clusterID int) {
	r.clusterFailures.WithLabelValues(strconv.Itoa(clusterID)).Inc()
}

// RecordChampionScore stores the champion's mean score.
func (r *Recorder) RecordChampionScore(score float64) {
	r.championScore.Set(score)
}

// RecordDownload counts a bhavcopy download by outcome (ok, missing, error).
func (r *Recorder) RecordDownload(status string) {
	r.downloads.WithLabelValues(status).Inc()
}

// RecordStageDuration records a stage duration in seconds.
func (r *Recorder) RecordStageDuration(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// Registry exposes the underlying registry (tests, custom exporters).
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

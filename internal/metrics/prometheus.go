package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa las metricas Prometheus del servicio.
type Metrics struct {
	// Voice pipeline
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	AudioSeconds  prometheus.Histogram
	ScratchFiles  prometheus.Gauge

	// Chat
	LLMRequests *prometheus.CounterVec

	// HTTP API
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics crea y registra las metricas en reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabayyan_voice_stage_duration_seconds",
			Help:    "Duration of each voice pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabayyan_voice_stage_failures_total",
			Help: "Total number of failed voice pipeline stages",
		}, []string{"stage"}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabayyan_voice_fallbacks_total",
			Help: "Times a stage failed and the pipeline continued with the previous file",
		}, []string{"stage"}),
		AudioSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabayyan_voice_synthesized_audio_seconds",
			Help:    "Length of synthesized answers in seconds",
			Buckets: prometheus.LinearBuckets(5, 5, 12),
		}),
		ScratchFiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "tabayyan_voice_scratch_files",
			Help: "Scratch audio files currently on disk",
		}),
		LLMRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabayyan_llm_requests_total",
			Help: "LLM chat requests by outcome",
		}, []string{"outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabayyan_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabayyan_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewNopMetrics registra en un registry descartable; util en tests.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

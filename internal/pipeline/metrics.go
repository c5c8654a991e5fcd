package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	activeJobs  prometheus.Gauge
	pdfBytes    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protobook_pipeline_jobs_total",
			Help: "Total processed books by outcome and the stage that failed.",
		}, []string{"outcome", "failed_stage"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "protobook_pipeline_job_duration_seconds",
			Help:    "End-to-end processing duration for each book.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protobook_pipeline_active_jobs",
			Help: "Books currently being processed.",
		}),
		pdfBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "protobook_pipeline_pdf_bytes",
			Help:    "Size of rendered PDFs in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.jobsTotal, m.jobDuration, m.activeJobs, m.pdfBytes)
	}
	return m
}

func (m *Metrics) observe(outcome Stage, failed Stage, d time.Duration) {
	m.jobsTotal.WithLabelValues(string(outcome), string(failed)).Inc()
	m.jobDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

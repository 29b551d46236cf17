package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airadcr_ingest_requests_total",
		Help: "Total ingestion-server requests by route and outcome.",
	}, []string{"route", "outcome"})
	IngestRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "airadcr_ingest_request_duration_seconds",
		Help:    "Duration of ingestion-server requests.",
		Buckets: prometheus.DefBuckets,
	})
	HIDConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airadcr_hid_connected",
		Help: "1 if a dictation device session is currently open, 0 otherwise.",
	})
	HubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airadcr_hub_requests_total",
		Help: "Total Hub Client requests by operation and outcome.",
	}, []string{"operation", "outcome"})
	HubRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airadcr_hub_retries_total",
		Help: "Total retry attempts made by the Hub Client.",
	})
	StoreSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airadcr_store_size_bytes",
		Help: "Size of the encrypted local store file in bytes.",
	})
	PendingReports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airadcr_pending_reports",
		Help: "Number of reports currently in pending status.",
	})
	InjectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airadcr_injections_total",
		Help: "Total text injections by outcome.",
	}, []string{"outcome"})
)

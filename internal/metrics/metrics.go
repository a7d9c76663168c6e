package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts catalog API requests by status class.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Total catalog API requests",
		},
		[]string{"endpoint", "status"},
	)

	// RetriesTotal counts backoff retries caused by throttling or server errors.
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Total retried catalog API requests",
		},
	)

	// PagesScanned counts discover pages pulled from the catalog.
	PagesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_pages_scanned_total",
			Help: "Total discover pages scanned",
		},
	)

	// RecordsTotal counts materialized records per class label.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_records_total",
			Help: "Total records materialized",
		},
		[]string{"label"},
	)

	// DiscardedTotal counts entries dropped per discard reason.
	DiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_discarded_total",
			Help: "Total catalog entries discarded without materializing",
		},
		[]string{"reason"},
	)

	// CheckpointWrites counts full-replace checkpoint flushes.
	CheckpointWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_checkpoint_writes_total",
			Help: "Total checkpoint snapshot writes",
		},
	)

	// PoolSize tracks the current size of each class pool.
	PoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_pool_size",
			Help: "Current per-class pool size",
		},
		[]string{"label"},
	)
)

// Serve exposes /metrics on addr in a background goroutine. The listener
// lives for the whole process; there is nothing to shut down before exit.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = server.ListenAndServe()
	}()
}

package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreWrites tracks report writes by status
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hapi_store_writes_total",
			Help: "Total number of report store writes",
		},
		[]string{"status"}, // "ok", "error"
	)

	// StoreBytes tracks bytes written to the report store
	StoreBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hapi_store_bytes_total",
			Help: "Total bytes of rendered reports written to the store",
		},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hapi_store_errors_total",
			Help: "Total number of report store operation errors",
		},
		[]string{"operation"}, // "publish", "get", "themes", "runs"
	)
)

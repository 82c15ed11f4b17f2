package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_products_saved_total",
		Help: "Total number of products created or edited",
	}, []string{"operation"})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_adjustments_total",
		Help: "Total number of manual stock adjustments committed",
	}, []string{"direction"})

	StockTransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_stock_transfers_total",
		Help: "Total number of completed cross-store transfers",
	})

	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sales_recorded_total",
		Help: "Total number of sale lines applied to inventory",
	})

	ValidationRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_validation_rejections_total",
		Help: "Total number of operations rejected before any write",
	}, []string{"reason"})

	WriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_write_failures_total",
		Help: "Total number of failed storage writes",
	}, []string{"step"})

	AuditLogFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_audit_log_failures_total",
		Help: "Total number of adjustment log writes that failed after the quantity change committed",
	})

	LockWaitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_lock_wait_seconds",
		Help:    "Time spent acquiring per-product stock locks",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

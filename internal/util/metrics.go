package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_transitions_total",
		Help: "Total number of committed status transitions",
	}, []string{"target"})

	TransitionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_transitions_failed_total",
		Help: "Total number of rejected or failed transitions",
	}, []string{"reason"})

	TransitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_transition_latency_seconds",
		Help:    "Latency of fulfillment transitions",
		Buckets: prometheus.DefBuckets,
	})

	StockClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_clamped_total",
		Help: "Total number of stock decrements floored at zero",
	})

	DepositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposits_total",
		Help: "Total number of recorded deposits",
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

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

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of orders confirmed after payment verification",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification attempts by mode and result",
	}, []string{"mode", "result"})

	CartComparisonLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_comparison_latency_seconds",
		Help:    "Latency of computing cross-shop alternatives for a cart",
		Buckets: prometheus.DefBuckets,
	})

	CartLookupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_lookup_failures_total",
		Help: "Alternative lookups that degraded to an empty result",
	})

	AppointmentsBookedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointments_booked_total",
		Help: "Total number of appointments booked",
	})

	AppointmentsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointments_cancelled_total",
		Help: "Total number of appointments cancelled",
	})

	SlotConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appointment_slot_conflicts_total",
		Help: "Booking attempts rejected because the slot was taken",
	})

	RecommendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_requests_total",
		Help: "Calls to the recommendation service by endpoint and result",
	}, []string{"endpoint", "result"})

	RecommendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommend_request_latency_seconds",
		Help:    "Latency of recommendation service calls",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"endpoint"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Domain events handled by the background worker",
	}, []string{"type"})

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

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts bookings accepted, by room.
	BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_bookings_created_total",
		Help: "Bookings created, by room.",
	}, []string{"room"})

	// BookingsRejected counts refused booking requests, by reason (invalid, full).
	BookingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_bookings_rejected_total",
		Help: "Booking requests refused, by reason.",
	}, []string{"reason"})

	// BookingsDeleted counts bookings removed by their owners.
	BookingsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_bookings_deleted_total",
		Help: "Bookings deleted by their owners.",
	})

	// Notifications counts confirmation deliveries by channel (email, push) and result.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_notifications_total",
		Help: "Booking confirmation deliveries, by channel and result.",
	}, []string{"channel", "result"})

	// Logins counts login attempts by result.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_logins_total",
		Help: "Login attempts, by result.",
	}, []string{"result"})

	// RequestDuration observes HTTP request latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

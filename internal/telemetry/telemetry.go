// Package telemetry exposes the service's Prometheus metrics on a private
// registry so tests never fight over the global default.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// RegistrationsTotal counts direct admission attempts by outcome
	// (admitted, capacity_exceeded, duplicate, error).
	RegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_registrations_total",
		Help: "Registration attempts by outcome",
	}, []string{"outcome"})

	PromotionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admission_promotions_total",
		Help: "Waitlist entries promoted into reservations",
	})

	ExpiredReservationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admission_expired_reservations_total",
		Help: "Reserved registrations expired by the sweep",
	})

	GroupReservationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_group_reservations_total",
		Help: "Group reservation attempts by outcome (reserved, insufficient_capacity, error)",
	}, []string{"outcome"})

	SeatsCommitted = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "admission_seats_committed",
		Help: "Seats currently committed per event",
	}, []string{"event_id"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RegistrationsTotal,
		PromotionsTotal,
		ExpiredReservationsTotal,
		GroupReservationsTotal,
		SeatsCommitted,
	)
}

// Handler serves the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

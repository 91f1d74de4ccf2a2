// Package metrics holds the engine's prometheus instruments, exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CardDetections counts device card reports by outcome
	// (pending, duplicate, invalid).
	CardDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptrack_card_detections_total",
		Help: "Card detections reported by field devices, by outcome.",
	}, []string{"outcome"})

	// CheckIns counts check-in attempts by outcome
	// (ok, invalid, no_active_event, unknown_card, not_registered, duplicate, error).
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptrack_checkins_total",
		Help: "Check-in attempts, by outcome.",
	}, []string{"outcome"})

	// CardActivations counts admin card bindings by outcome (ok, conflict, not_found).
	CardActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taptrack_card_activations_total",
		Help: "Card activation attempts, by outcome.",
	}, []string{"outcome"})

	// ImportedRegistrations counts registration rows written by bulk import.
	ImportedRegistrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taptrack_imported_registrations_total",
		Help: "Registration rows inserted by bulk import.",
	})
)

// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportAttempts counts guest-list import attempts by how they ended.
	ImportAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convites_import_attempts_total",
		Help: "Guest list import attempts by outcome",
	}, []string{"outcome"})

	// ImportRows counts imported spreadsheet rows by result.
	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convites_import_rows_total",
		Help: "Rows processed by guest list imports",
	}, []string{"result"})

	// InviteSends counts invitation delivery jobs by result.
	InviteSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convites_invite_sends_total",
		Help: "Invitation delivery jobs by result",
	}, []string{"result"})

	// RSVPResponses counts guest answers by status.
	RSVPResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convites_rsvp_responses_total",
		Help: "RSVP answers received by status",
	}, []string{"status"})
)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for auth metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Operation labels for auth metrics.
const (
	OpRegister     = "register"
	OpLogin        = "login"
	OpCurrentUser  = "current_user"
	OpResetRequest = "reset_request"
	OpResetRedeem  = "reset_redeem"
)

// Operations counts auth service calls by operation and outcome. A failure
// is a rejected request (bad credentials, bad token); an error is an
// internal fault.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "whiskeytracker_auth_operations_total",
		Help: "Total number of auth operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// ResetTokensSwept counts expired reset tokens removed by the sweeper.
var ResetTokensSwept = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "whiskeytracker_reset_tokens_swept_total",
		Help: "Total number of expired password reset tokens removed by the sweeper",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(ResetTokensSwept)
}

func recordOperation(op, outcome string) {
	Operations.WithLabelValues(op, outcome).Inc()
}

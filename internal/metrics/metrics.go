// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CirclesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circles_created_total",
			Help: "Total number of circles created",
		},
	)

	// CircleJoins counts join attempts by result: joined, already_member,
	// not_found, invalid, error.
	CircleJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_joins_total",
			Help: "Total number of circle join attempts",
		},
		[]string{"result"},
	)

	PasscodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circle_passcode_collisions_total",
			Help: "Total number of generated passcodes rejected as duplicates",
		},
	)

	// AuthAttempts counts register and login calls by operation and result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of register and login attempts",
		},
		[]string{"op", "result"},
	)

	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpc_request_duration_seconds",
			Help:    "Duration of RPC requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"procedure"},
	)
)

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinch_dispatches_total",
			Help: "Events delivered to plugin handlers, by category.",
		},
		[]string{"category"},
	)

	handlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinch_handler_errors_total",
			Help: "Handler invocations that returned an error, by category.",
		},
		[]string{"category"},
	)

	handlerPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cinch_handler_panics_total",
			Help: "Handler invocations recovered from a panic.",
		},
	)

	timersScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cinch_timers_scheduled_total",
			Help: "Plugin timers started over the host's lifetime.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		dispatchesTotal,
		handlerErrorsTotal,
		handlerPanicsTotal,
		timersScheduled,
	)
}

// Package metrics exposes Prometheus counters for the bus and hooks them
// into the dispatcher and subscriber.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LuizFelipeDev/microrabbit-banking/bus"
	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
)

var (
	CommandsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_commands_dispatched_total",
			Help: "Total number of commands dispatched, by command and status",
		},
		[]string{"command", "status"},
	)

	EventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_consumed_total",
			Help: "Total number of event deliveries, by event, queue and outcome",
		},
		[]string{"event", "queue", "outcome"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(CommandsDispatched)
	prometheus.MustRegister(EventsConsumed)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// DispatchCounter is dispatcher middleware counting every command by outcome.
func DispatchCounter() bus.CommandMiddleware {
	return func(next bus.CommandInvoker) bus.CommandInvoker {
		return func(ctx context.Context, cmd any) (any, error) {
			name := "unknown"
			if m, ok := cmd.(cbus.Message); ok {
				name = m.MessageName()
			}

			res, err := next(ctx, cmd)

			status := "ok"
			if err != nil {
				status = "error"
			}

			CommandsDispatched.WithLabelValues(name, status).Inc()

			return res, err
		}
	}
}

// ConsumeCounter is a subscriber observer counting every delivery by outcome.
func ConsumeCounter() bus.ConsumeObserver {
	return func(event, queue, outcome string) {
		EventsConsumed.WithLabelValues(event, queue, outcome).Inc()
	}
}

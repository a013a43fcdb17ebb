// Package metrics exports auth activity as prometheus counters.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/goliatone/go-task-auth"
)

const Namespace = "taskauth"

// Sink is an auth.ActivitySink backed by prometheus counters
type Sink struct {
	events *prometheus.CounterVec
}

// NewSink registers the collectors on reg
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "auth_events_total",
		Help:      "Authentication and account events by type, mode and reason.",
	}, []string{"event", "mode", "reason"})

	if err := reg.Register(events); err != nil {
		return nil, err
	}

	return &Sink{events: events}, nil
}

func (s *Sink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType), event.Mode, event.Reason).Inc()
	return nil
}

// Counter exposes the underlying vector, used by tests
func (s *Sink) Counter() *prometheus.CounterVec {
	return s.events
}

// NewRegistry returns a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the prometheus text format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

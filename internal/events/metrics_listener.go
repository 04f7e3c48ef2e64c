package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pelagornis/go-rex/pkg/rex/v1/events"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"
)

// MetricsEventListener subscribes to a go-rex event bus and updates
// Prometheus metrics based on the events it receives. It gives deployments
// bus-level visibility without wiring counters into every publisher.
type MetricsEventListener struct {
	bus            events.Bus
	log            rexlog.Logger
	actionsCounter prometheus.Counter
	effectsCounter *prometheus.CounterVec
	historyCounter prometheus.Counter
}

// NewMetricsEventListener creates a listener and registers its collectors
// with the given registry. Panics if any dependency is nil.
func NewMetricsEventListener(bus events.Bus, reg *prometheus.Registry, log rexlog.Logger) *MetricsEventListener {
	if bus == nil || reg == nil || log == nil {
		panic("MetricsEventListener requires a non-nil Bus, Registry, and Logger")
	}

	l := &MetricsEventListener{
		bus: bus,
		log: log.With("component", "MetricsEventListener"),
		actionsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rex_bus_actions_dispatched_total",
			Help: "Total number of ActionDispatched events observed on the bus.",
		}),
		effectsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rex_bus_effects_total",
			Help: "Total number of effect lifecycle events observed on the bus, by outcome.",
		}, []string{"outcome"}),
		historyCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rex_bus_history_navigations_total",
			Help: "Total number of HistoryNavigated events observed on the bus.",
		}),
	}
	reg.MustRegister(l.actionsCounter, l.effectsCounter, l.historyCounter)
	return l
}

// Start subscribes to the bus and blocks until the context is cancelled,
// then removes the subscription. Intended to run in its own goroutine.
func (l *MetricsEventListener) Start(ctx context.Context) {
	l.log.Debugf("Starting metrics event listener...")
	cancel := l.bus.Subscribe(l.handleEvent)
	<-ctx.Done()
	cancel()
	l.log.Debugf("Context cancelled, metrics event listener stopped.")
}

// handleEvent processes a single event, incrementing metrics as needed.
func (l *MetricsEventListener) handleEvent(event events.Event) {
	switch event.Type {
	case events.ActionDispatched:
		l.actionsCounter.Inc()
	case events.EffectCompleted:
		l.effectsCounter.WithLabelValues("completed").Inc()
	case events.EffectFailed:
		l.effectsCounter.WithLabelValues("failed").Inc()
	case events.EffectCancelled:
		l.effectsCounter.WithLabelValues("cancelled").Inc()
	case events.HistoryNavigated:
		l.historyCounter.Inc()
	}
}

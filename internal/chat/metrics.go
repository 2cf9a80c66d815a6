package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// turnsTotal counts resolved conversation turns by the ladder tier that
	// produced the assistant content.
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Resolved conversation turns by content tier",
	}, []string{"tier"})

	// deltasTotal counts text deltas applied to assistant placeholders.
	deltasTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "chat",
		Name:      "deltas_total",
		Help:      "Text deltas applied to assistant messages",
	})

	// upstreamErrors counts completion failures by exchange stage.
	// Labels: stage (stream, retry)
	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "chat",
		Name:      "upstream_errors_total",
		Help:      "Upstream completion failures by exchange stage",
	}, []string{"stage"})
)

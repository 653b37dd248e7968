package octopus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics.
var (
	pizzasAddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pizzaboard",
			Name:      "pizzas_added_total",
			Help:      "Total number of pizzas added",
		},
	)

	pizzasRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pizzaboard",
			Name:      "pizzas_removed_total",
			Help:      "Total number of pizzas hidden by a remove",
		},
	)

	pizzasVisible = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pizzaboard",
			Name:      "pizzas_visible",
			Help:      "Number of pizzas currently shown",
		},
	)

	rendersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pizzaboard",
			Name:      "renders_total",
			Help:      "Total number of redraw requests sent to the presenter",
		},
	)
)

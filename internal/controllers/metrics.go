package controllers

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics counts business events
type DomainMetrics struct {
	shoppingListDownloads prometheus.Counter
	relationshipChanges   *prometheus.CounterVec
	recipeWrites          *prometheus.CounterVec
}

// NewDomainMetrics registers the business counters with reg
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	m := &DomainMetrics{
		shoppingListDownloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foodgram",
			Name:      "shopping_list_downloads_total",
			Help:      "Shopping lists rendered for download.",
		}),
		relationshipChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodgram",
			Name:      "relationship_changes_total",
			Help:      "Favorites, cart entries and subscriptions created or removed.",
		}, []string{"kind", "action"}),
		recipeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodgram",
			Name:      "recipe_writes_total",
			Help:      "Recipes created, updated or deleted.",
		}, []string{"action"}),
	}
	reg.MustRegister(m.shoppingListDownloads, m.relationshipChanges, m.recipeWrites)
	return m
}

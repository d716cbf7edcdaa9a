package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	autoModerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_auto_actions_total",
			Help: "Automatic moderation actions by outcome",
		},
		[]string{"action"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_transitions_total",
			Help: "Flag status transitions applied",
		},
		[]string{"action", "to"},
	)

	analyzerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_analyzer_failures_total",
			Help: "Content analyzer failures by operation",
		},
		[]string{"operation"},
	)

	conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_version_conflicts_total",
			Help: "Optimistic lock conflicts by operation",
		},
		[]string{"operation"},
	)

	recommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_recommendations_total",
			Help: "AI assist recommendations served by source",
		},
		[]string{"source"},
	)
)

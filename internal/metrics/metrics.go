package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// XP accounting metrics
var (
	// AwardsTotal tracks award calls by source and whether any XP was granted
	AwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awards_total",
			Help: "Award calls by source (chat/voice/admin) and outcome (granted/capped)",
		},
		[]string{"source", "outcome"},
	)

	// PointsGrantedTotal tracks total XP points actually granted
	PointsGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_points_granted_total",
			Help: "Total XP points granted after cap and ceiling clamps",
		},
		[]string{"source"},
	)
)

// Decay metrics
var (
	// DecayPassesTotal counts completed decay passes
	DecayPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "decay_passes_total",
			Help: "Total completed decay passes",
		},
	)

	// DecayedMembersTotal counts member rows reduced by decay
	DecayedMembersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "decay_members_total",
			Help: "Total member rows reduced by a decay pass",
		},
	)

	// DecayPassDurationSeconds tracks decay pass latency
	DecayPassDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decay_pass_duration_seconds",
			Help:    "Decay pass duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Reconciliation metrics
var (
	// ReconcilePassesTotal counts reconciliation passes by trigger
	ReconcilePassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_passes_total",
			Help: "Reconciliation passes by trigger (debounce/schedule/manual)",
		},
		[]string{"trigger"},
	)

	// LabelMutationsTotal counts external label mutations by operation and status
	LabelMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_label_mutations_total",
			Help: "External label mutations by operation (add/remove) and status",
		},
		[]string{"operation", "status"},
	)

	// ReconcileDurationSeconds tracks full reconciliation pass latency
	ReconcileDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Poll metrics
var (
	// PollVotesTotal counts vote attempts by outcome
	PollVotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_votes_total",
			Help: "Vote attempts by outcome (accepted/duplicate/closed/invalid)",
		},
		[]string{"outcome"},
	)

	// PollsClosedTotal counts polls sealed by the closure sweep
	PollsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polls_closed_total",
			Help: "Total polls sealed by the closure sweep",
		},
	)

	// PollRevealFailuresTotal counts failed reveal edits
	PollRevealFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_reveal_failures_total",
			Help: "Total failed one-time reveal edits after closure",
		},
	)
)

// Package reconcile converges external tier labels toward the tiers derived
// from the XP ledger. Passes are idempotent: a pass over an unchanged ledger
// performs zero label mutations.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/metrics"
	"github.com/pscheid92/guildpulse/internal/rank"
	"golang.org/x/time/rate"
)

// Trigger names the cause of a reconciliation pass, used for metrics only.
const (
	TriggerDebounce = "debounce"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Config holds the ranking cutoffs, the external labels they map to, and the
// pacing budget for label mutations.
type Config struct {
	Labels domain.TierLabels
	Rank   rank.Config
	// OpsPerSecond paces label add/remove calls against the external
	// platform's rate limits. Zero or negative disables pacing.
	OpsPerSecond float64
}

// Result summarizes one reconciliation pass.
type Result struct {
	Members   int
	Mutations int
	Failed    int
}

// Reconciler drives full-community label reconciliation passes.
type Reconciler struct {
	ledger  domain.MemberLedger
	roster  domain.RosterProvider
	labels  domain.LabelActor
	locks   *coordination.CommunityLocks
	limiter *rate.Limiter
	clock   clockwork.Clock
	cfg     Config
}

func NewReconciler(ledger domain.MemberLedger, roster domain.RosterProvider, labels domain.LabelActor, locks *coordination.CommunityLocks, clock clockwork.Clock, cfg Config) *Reconciler {
	limit := rate.Inf
	if cfg.OpsPerSecond > 0 {
		limit = rate.Limit(cfg.OpsPerSecond)
	}
	return &Reconciler{
		ledger:  ledger,
		roster:  roster,
		labels:  labels,
		locks:   locks,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clock,
		cfg:     cfg,
	}
}

// Run executes one full reconciliation pass for the community.
//
// The roster is fetched exactly once, before any lock is taken. The XP
// snapshot is read under the community lock so it is internally consistent,
// then the lock is released for the entire label phase: label reads and
// mutations are external calls and must never block live awards. A member
// whose label mutation fails is counted and skipped; the next pass is the
// retry mechanism.
func (r *Reconciler) Run(ctx context.Context, communityID, trigger string) (Result, error) {
	start := r.clock.Now()
	defer func() {
		metrics.ReconcilePassesTotal.WithLabelValues(trigger).Inc()
		metrics.ReconcileDurationSeconds.Observe(r.clock.Since(start).Seconds())
	}()

	members, err := r.roster.ListNonBotMembers(ctx, communityID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch roster: %w", err)
	}

	standings, err := r.snapshot(ctx, communityID, members)
	if err != nil {
		return Result{}, err
	}

	tiers := rank.ComputeTiers(standings, r.cfg.Rank)

	res := Result{Members: len(members)}
	for _, memberID := range members {
		mutated, err := r.applyLabels(ctx, communityID, memberID, tiers[memberID])
		res.Mutations += mutated
		if err != nil {
			res.Failed++
			slog.WarnContext(ctx, "label reconciliation failed for member",
				"community_id", communityID, "member_id", memberID, "error", err)
		}
	}

	slog.InfoContext(ctx, "reconciliation pass finished",
		"community_id", communityID, "trigger", trigger,
		"members", res.Members, "mutations", res.Mutations, "failed", res.Failed)
	return res, nil
}

// snapshot materializes a ledger row for every roster member and reads all XP
// under the community lock. Creating rows here means members who have never
// spoken still receive their entry label.
func (r *Reconciler) snapshot(ctx context.Context, communityID string, members []string) ([]rank.Standing, error) {
	release := r.locks.Acquire(communityID)
	defer release()

	standings := make([]rank.Standing, 0, len(members))
	for _, memberID := range members {
		rec, err := r.ledger.GetOrCreate(ctx, communityID, memberID)
		if err != nil {
			return nil, fmt.Errorf("failed to load member record: %w", err)
		}
		standings = append(standings, rank.Standing{MemberID: memberID, XP: rec.XP})
	}
	return standings, nil
}

// applyLabels converges one member's tier labels toward the single target
// label. Removals happen before the add so the member never carries two tier
// labels once the pass has touched them. Labels outside the tier set, such as
// the manually granted prestige label, are never inspected or removed.
func (r *Reconciler) applyLabels(ctx context.Context, communityID, memberID string, tier domain.Tier) (int, error) {
	target := r.cfg.Labels.For(tier)

	held := make(map[string]bool, 4)
	for _, label := range r.cfg.Labels.All() {
		has, err := r.labels.HasLabel(ctx, communityID, memberID, label)
		if err != nil {
			return 0, fmt.Errorf("failed to check label %q: %w", label, err)
		}
		held[label] = has
	}

	if held[target] && heldCount(held) == 1 {
		return 0, nil
	}

	mutated := 0
	for _, label := range r.cfg.Labels.All() {
		if label == target || !held[label] {
			continue
		}
		if err := r.pace(ctx); err != nil {
			return mutated, err
		}
		if err := r.labels.RemoveLabel(ctx, communityID, memberID, label); err != nil {
			metrics.LabelMutationsTotal.WithLabelValues("remove", "error").Inc()
			return mutated, fmt.Errorf("failed to remove label %q: %w", label, err)
		}
		metrics.LabelMutationsTotal.WithLabelValues("remove", "ok").Inc()
		mutated++
	}

	if !held[target] {
		if err := r.pace(ctx); err != nil {
			return mutated, err
		}
		if err := r.labels.AddLabel(ctx, communityID, memberID, target); err != nil {
			metrics.LabelMutationsTotal.WithLabelValues("add", "error").Inc()
			return mutated, fmt.Errorf("failed to add label %q: %w", target, err)
		}
		metrics.LabelMutationsTotal.WithLabelValues("add", "ok").Inc()
		mutated++
	}

	return mutated, nil
}

func (r *Reconciler) pace(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("label pacing interrupted: %w", err)
	}
	return nil
}

func heldCount(held map[string]bool) int {
	n := 0
	for _, has := range held {
		if has {
			n++
		}
	}
	return n
}

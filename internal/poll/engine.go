// Package poll implements poll creation, exactly-once voting, and the timed
// closure sweep with its one-time result reveal.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/metrics"
)

// Config bounds poll parameters at creation time.
type Config struct {
	MinOptions  int
	MaxOptions  int
	MinDuration time.Duration
	MaxDuration time.Duration
}

// CreateRequest carries everything needed to open a poll.
type CreateRequest struct {
	CommunityID string
	ChannelID   string
	CreatedBy   string
	Question    string
	Options     []string
	Duration    time.Duration
	PingMode    domain.PingMode
	RoleRef     string
	DMEnabled   bool
}

// Engine owns the poll lifecycle. Vote uniqueness and the vote-versus-closure
// race are settled inside the ledger, so the engine itself holds no locks.
type Engine struct {
	ledger    domain.PollLedger
	presenter domain.PollPresenter
	clock     clockwork.Clock
	cfg       Config
}

func NewEngine(ledger domain.PollLedger, presenter domain.PollPresenter, clock clockwork.Clock, cfg Config) *Engine {
	return &Engine{ledger: ledger, presenter: presenter, clock: clock, cfg: cfg}
}

// Create validates the request and opens the poll. The duration is clamped
// into the configured window rather than rejected; option count and ping mode
// problems are hard errors.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*domain.Poll, error) {
	if len(req.Options) < e.cfg.MinOptions || len(req.Options) > e.cfg.MaxOptions {
		return nil, fmt.Errorf("%w: got %d options, want between %d and %d",
			domain.ErrInvalidOptions, len(req.Options), e.cfg.MinOptions, e.cfg.MaxOptions)
	}
	for _, opt := range req.Options {
		if opt == "" {
			return nil, fmt.Errorf("%w: empty option text", domain.ErrInvalidOptions)
		}
	}

	mode := req.PingMode
	if mode == "" {
		mode = domain.PingNone
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown ping mode %q", req.PingMode)
	}
	if mode == domain.PingRole && req.RoleRef == "" {
		return nil, domain.ErrRoleRequired
	}
	// A DM blast without any ping intent is almost always a mistake.
	if req.DMEnabled && mode == domain.PingNone {
		return nil, fmt.Errorf("direct messages require a ping mode")
	}

	duration := min(max(req.Duration, e.cfg.MinDuration), e.cfg.MaxDuration)

	now := e.clock.Now()
	poll := &domain.Poll{
		ID:          uuid.New(),
		CommunityID: req.CommunityID,
		ChannelID:   req.ChannelID,
		CreatedBy:   req.CreatedBy,
		Question:    req.Question,
		Options:     append([]string(nil), req.Options...),
		PingMode:    mode,
		RoleRef:     req.RoleRef,
		DMEnabled:   req.DMEnabled,
		CreatedAt:   now,
		EndsAt:      now.Add(duration),
	}

	if err := e.ledger.CreatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("failed to persist poll: %w", err)
	}

	slog.InfoContext(ctx, "poll created",
		"community_id", req.CommunityID, "poll_id", poll.ID, "ends_at", poll.EndsAt)
	return poll, nil
}

// Vote records one member's choice. The first vote wins permanently; repeats
// return ErrDuplicateVote and votes after closure return ErrPollClosed.
func (e *Engine) Vote(ctx context.Context, pollID uuid.UUID, voterID string, optionIndex int) error {
	poll, err := e.ledger.GetPoll(ctx, pollID)
	if err != nil {
		metrics.PollVotesTotal.WithLabelValues("invalid").Inc()
		return err
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		metrics.PollVotesTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: index %d out of range", domain.ErrInvalidOption, optionIndex)
	}

	err = e.ledger.InsertVote(ctx, pollID, voterID, optionIndex, e.clock.Now())
	switch {
	case errors.Is(err, domain.ErrDuplicateVote):
		metrics.PollVotesTotal.WithLabelValues("duplicate").Inc()
		return err
	case errors.Is(err, domain.ErrPollClosed):
		metrics.PollVotesTotal.WithLabelValues("closed").Inc()
		return err
	case err != nil:
		metrics.PollVotesTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("failed to record vote: %w", err)
	}

	metrics.PollVotesTotal.WithLabelValues("accepted").Inc()
	return nil
}

// CloseDuePolls seals every open poll past its deadline and reveals each
// final tally once. The closed-flag flip is the commit point: only the caller
// that actually flipped it runs the reveal, so the result is published at most
// once even with overlapping sweeps. A failed reveal is counted and logged but
// never reopens the poll.
func (e *Engine) CloseDuePolls(ctx context.Context) (int, error) {
	due, err := e.ledger.ListDueOpen(ctx, e.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due polls: %w", err)
	}

	closed := 0
	for _, poll := range due {
		sealed, err := e.ledger.ClosePoll(ctx, poll.ID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to close poll",
				"community_id", poll.CommunityID, "poll_id", poll.ID, "error", err)
			continue
		}
		if !sealed {
			continue
		}
		closed++
		metrics.PollsClosedTotal.Inc()
		poll.Closed = true

		tally, err := e.ledger.TallyVotes(ctx, poll.ID)
		if err != nil {
			metrics.PollRevealFailuresTotal.Inc()
			slog.ErrorContext(ctx, "failed to tally closed poll",
				"community_id", poll.CommunityID, "poll_id", poll.ID, "error", err)
			continue
		}

		if err := e.presenter.RevealResult(ctx, poll, tally); err != nil {
			metrics.PollRevealFailuresTotal.Inc()
			slog.ErrorContext(ctx, "failed to reveal poll result",
				"community_id", poll.CommunityID, "poll_id", poll.ID, "error", err)
		}
	}
	return closed, nil
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PingMode controls who gets pinged when a poll is posted.
type PingMode string

const (
	PingNone     PingMode = "none"
	PingHere     PingMode = "here"
	PingEveryone PingMode = "everyone"
	PingRole     PingMode = "role"
)

// Valid reports whether m is one of the known ping modes.
func (m PingMode) Valid() bool {
	switch m {
	case PingNone, PingHere, PingEveryone, PingRole:
		return true
	}
	return false
}

// Poll is created open and becomes closed exactly once, by the timed sweep.
// Votes are immutable and rejected entirely after closure.
type Poll struct {
	ID          uuid.UUID
	CommunityID string
	ChannelID   string
	CreatedBy   string
	Question    string
	Options     []string
	PingMode    PingMode
	RoleRef     string
	DMEnabled   bool
	CreatedAt   time.Time
	EndsAt      time.Time
	Closed      bool
}

// Vote records one member's choice. (PollID, VoterID) is unique; the
// constraint lives in the storage layer so concurrent double-clicks cannot
// both succeed.
type Vote struct {
	PollID      uuid.UUID
	VoterID     string
	OptionIndex int
	VotedAt     time.Time
}

// PollLedger is the persistent store for polls and votes.
type PollLedger interface {
	CreatePoll(ctx context.Context, poll *Poll) error
	GetPoll(ctx context.Context, id uuid.UUID) (*Poll, error)
	// InsertVote records a vote. It returns ErrPollNotFound, ErrPollClosed if
	// the poll is closed or past its deadline at commit time, or
	// ErrDuplicateVote if the voter already voted. The closed check and the
	// insert are a single atomic storage operation: a closure committing first
	// wins the race against an in-flight vote.
	InsertVote(ctx context.Context, pollID uuid.UUID, voterID string, optionIndex int, votedAt time.Time) error
	// ListDueOpen returns open polls whose deadline has passed.
	ListDueOpen(ctx context.Context, now time.Time) ([]*Poll, error)
	// ClosePoll flips the closed flag. Returns false if the poll was already
	// closed (another sweep won).
	ClosePoll(ctx context.Context, id uuid.UUID) (bool, error)
	// TallyVotes counts recorded votes grouped by option index. The result
	// has one entry per poll option.
	TallyVotes(ctx context.Context, id uuid.UUID) ([]int, error)
}

// PollPresenter receives final tallies for the one-time reveal edit. It is an
// external collaborator: failures are counted by the sweep, never retried
// within the same pass.
type PollPresenter interface {
	RevealResult(ctx context.Context, poll *Poll, tally []int) error
}

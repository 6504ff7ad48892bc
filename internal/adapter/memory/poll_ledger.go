package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/guildpulse/internal/domain"
)

// PollLedger keeps polls and votes in process memory. One mutex guards both
// maps, so the closed-flag check inside InsertVote and the flag write inside
// ClosePoll are serialized: a closure committing first wins the race against
// an in-flight vote, and a vote can never be recorded twice.
type PollLedger struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*domain.Poll
	votes map[uuid.UUID]map[string]domain.Vote
}

func NewPollLedger() *PollLedger {
	return &PollLedger{
		polls: make(map[uuid.UUID]*domain.Poll),
		votes: make(map[uuid.UUID]map[string]domain.Vote),
	}
}

func copyPoll(p *domain.Poll) *domain.Poll {
	cp := *p
	cp.Options = append([]string(nil), p.Options...)
	return &cp
}

func (l *PollLedger) CreatePoll(_ context.Context, poll *domain.Poll) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.polls[poll.ID] = copyPoll(poll)
	l.votes[poll.ID] = make(map[string]domain.Vote)
	return nil
}

func (l *PollLedger) GetPoll(_ context.Context, id uuid.UUID) (*domain.Poll, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	poll, ok := l.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return copyPoll(poll), nil
}

func (l *PollLedger) InsertVote(_ context.Context, pollID uuid.UUID, voterID string, optionIndex int, votedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	poll, ok := l.polls[pollID]
	if !ok {
		return domain.ErrPollNotFound
	}
	if poll.Closed || !votedAt.Before(poll.EndsAt) {
		return domain.ErrPollClosed
	}
	if _, voted := l.votes[pollID][voterID]; voted {
		return domain.ErrDuplicateVote
	}

	l.votes[pollID][voterID] = domain.Vote{
		PollID:      pollID,
		VoterID:     voterID,
		OptionIndex: optionIndex,
		VotedAt:     votedAt,
	}
	return nil
}

func (l *PollLedger) ListDueOpen(_ context.Context, now time.Time) ([]*domain.Poll, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []*domain.Poll
	for _, poll := range l.polls {
		if !poll.Closed && !poll.EndsAt.After(now) {
			due = append(due, copyPoll(poll))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EndsAt.Before(due[j].EndsAt) })
	return due, nil
}

func (l *PollLedger) ClosePoll(_ context.Context, id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	poll, ok := l.polls[id]
	if !ok {
		return false, domain.ErrPollNotFound
	}
	if poll.Closed {
		return false, nil
	}
	poll.Closed = true
	return true, nil
}

func (l *PollLedger) TallyVotes(_ context.Context, id uuid.UUID) ([]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	poll, ok := l.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}

	tally := make([]int, len(poll.Options))
	for _, vote := range l.votes[id] {
		if vote.OptionIndex >= 0 && vote.OptionIndex < len(tally) {
			tally[vote.OptionIndex]++
		}
	}
	return tally, nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/domain"
)

// MemberLedger keeps member records in process memory. Records are returned
// by value-copy so callers observe the same read-modify-write discipline the
// postgres ledger enforces: mutations only land via Save.
type MemberLedger struct {
	clock clockwork.Clock
	mu    sync.Mutex
	rows  map[string]map[string]*domain.MemberRecord
}

func NewMemberLedger(clock clockwork.Clock) *MemberLedger {
	return &MemberLedger{
		clock: clock,
		rows:  make(map[string]map[string]*domain.MemberRecord),
	}
}

func (l *MemberLedger) GetOrCreate(_ context.Context, communityID, memberID string) (*domain.MemberRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	community, ok := l.rows[communityID]
	if !ok {
		community = make(map[string]*domain.MemberRecord)
		l.rows[communityID] = community
	}

	rec, ok := community[memberID]
	if !ok {
		now := l.clock.Now()
		rec = &domain.MemberRecord{
			CommunityID: communityID,
			MemberID:    memberID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		community[memberID] = rec
	}

	cp := *rec
	return &cp, nil
}

func (l *MemberLedger) Save(_ context.Context, rec *domain.MemberRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	community, ok := l.rows[rec.CommunityID]
	if !ok {
		community = make(map[string]*domain.MemberRecord)
		l.rows[rec.CommunityID] = community
	}

	cp := *rec
	cp.UpdatedAt = l.clock.Now()
	community[rec.MemberID] = &cp
	return nil
}

func (l *MemberLedger) ListByCommunity(_ context.Context, communityID string) ([]*domain.MemberRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	community := l.rows[communityID]
	records := make([]*domain.MemberRecord, 0, len(community))
	for _, rec := range community {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].MemberID < records[j].MemberID })
	return records, nil
}

// ChatCooldowns tracks chat award cooldowns in memory.
type ChatCooldowns struct {
	clock   clockwork.Clock
	mu      sync.Mutex
	expires map[string]time.Time
}

func NewChatCooldowns(clock clockwork.Clock) *ChatCooldowns {
	return &ChatCooldowns{
		clock:   clock,
		expires: make(map[string]time.Time),
	}
}

func (c *ChatCooldowns) Active(_ context.Context, communityID, memberID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := communityID + ":" + memberID
	expiry, ok := c.expires[key]
	if !ok {
		return false, nil
	}
	if !c.clock.Now().Before(expiry) {
		delete(c.expires, key)
		return false, nil
	}
	return true, nil
}

func (c *ChatCooldowns) Arm(_ context.Context, communityID, memberID string, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expires[communityID+":"+memberID] = c.clock.Now().Add(d)
	return nil
}

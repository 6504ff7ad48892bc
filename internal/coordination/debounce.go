package coordination

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/guildpulse/internal/platform/correlation"
)

// FireFunc runs a debounced reconciliation for one community.
type FireFunc func(ctx context.Context, communityID string)

// Debouncer collapses bursts of reconcile requests per community: the first
// request starts a quiet-period timer, further requests while it is pending
// are no-ops, and the reconciliation fires once when the timer elapses.
type Debouncer struct {
	clock clockwork.Clock
	quiet time.Duration
	fire  FireFunc

	mu       sync.Mutex
	pending  map[string]struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDebouncer(clock clockwork.Clock, quiet time.Duration, fire FireFunc) *Debouncer {
	return &Debouncer{
		clock:   clock,
		quiet:   quiet,
		fire:    fire,
		pending: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Request schedules a reconciliation for the community after the quiet
// period. A request while a timer is already pending is a no-op.
func (d *Debouncer) Request(communityID string) {
	d.mu.Lock()
	if _, exists := d.pending[communityID]; exists {
		d.mu.Unlock()
		return
	}
	d.pending[communityID] = struct{}{}
	d.mu.Unlock()

	timer := d.clock.NewTimer(d.quiet)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		select {
		case <-timer.Chan():
			d.clear(communityID)
			ctx := correlation.Tag(context.Background())
			d.fire(ctx, communityID)
		case <-d.stopCh:
			timer.Stop()
			d.clear(communityID)
		}
	}()
}

// Pending reports whether a timer is currently armed for the community.
func (d *Debouncer) Pending(communityID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.pending[communityID]
	return exists
}

// Stop cancels all pending timers and waits for in-flight fires to finish.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
}

func (d *Debouncer) clear(communityID string) {
	d.mu.Lock()
	delete(d.pending, communityID)
	d.mu.Unlock()
}

package attendance

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrSuperseded is returned when a newer fetch for the same view started
// while this one was running.
var ErrSuperseded = errors.New("a newer request for this view replaced this one")

// Tracker sequences fetches per view. Beginning a fetch cancels the previous
// one for the same key; only the latest ticket may publish its result.
type Tracker struct {
	mu    sync.Mutex
	next  uint64
	views map[string]*inflight
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

// Ticket identifies one fetch.
type Ticket struct {
	tracker *Tracker
	key     string
	seq     uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{views: make(map[string]*inflight)}
}

// Begin registers a new fetch for key and returns its context and ticket.
func (t *Tracker) Begin(ctx context.Context, key string) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.views[key]
	if !ok {
		cur = &inflight{}
		t.views[key] = cur
	}
	if cur.cancel != nil {
		cur.cancel()
	}
	t.next++
	cur.seq = t.next
	cur.cancel = cancel
	return ctx, Ticket{tracker: t, key: key, seq: cur.seq}
}

// Current reports whether no newer fetch has begun for the ticket's view.
func (tk Ticket) Current() bool {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()
	cur, ok := tk.tracker.views[tk.key]
	return ok && cur.seq == tk.seq
}

// Done releases the ticket. The latest ticket removes the view entry.
func (tk Ticket) Done() {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()
	cur, ok := tk.tracker.views[tk.key]
	if !ok || cur.seq != tk.seq {
		return
	}
	cur.cancel()
	delete(tk.tracker.views, tk.key)
}

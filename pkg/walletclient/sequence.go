package walletclient

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause of a request replaced by a newer one.
var ErrSuperseded = errors.New("request superseded by a newer one")

// Sequencer guards against stale responses. Each logical query key has at most
// one live request; starting a new one cancels its predecessor.
type Sequencer struct {
	mu      sync.Mutex
	latest  map[string]uint64
	cancels map[string]context.CancelCauseFunc
}

// NewSequencer returns an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		latest:  make(map[string]uint64),
		cancels: make(map[string]context.CancelCauseFunc),
	}
}

// Ticket identifies one request issued through a Sequencer.
type Ticket struct {
	seq    *Sequencer
	key    string
	n      uint64
	cancel context.CancelCauseFunc
}

// Begin cancels any in-flight request for key and starts a new one.
func (s *Sequencer) Begin(ctx context.Context, key string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.cancels[key]; ok {
		prev(ErrSuperseded)
	}
	s.latest[key]++
	s.cancels[key] = cancel
	return ctx, &Ticket{seq: s, key: key, n: s.latest[key], cancel: cancel}
}

// Current reports whether no newer request has started for the same key.
func (t *Ticket) Current() bool {
	t.seq.mu.Lock()
	defer t.seq.mu.Unlock()
	return t.seq.latest[t.key] == t.n
}

// Done releases the ticket's context.
func (t *Ticket) Done() {
	t.seq.mu.Lock()
	if t.seq.latest[t.key] == t.n {
		delete(t.seq.cancels, t.key)
	}
	t.seq.mu.Unlock()
	t.cancel(nil)
}

// CancelAll aborts every in-flight request and invalidates all tickets.
func (s *Sequencer) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cancel := range s.cancels {
		cancel(context.Canceled)
		delete(s.cancels, key)
		s.latest[key]++
	}
}

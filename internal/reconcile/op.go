package reconcile

import (
	"context"
	"sync"
)

// Phase tracks a committed change from the local guess to server truth.
type Phase int

const (
	// PhaseOptimistic: applied locally, request in flight.
	PhaseOptimistic Phase = iota
	// PhaseConfirmed: the server accepted the change and the board was
	// refreshed from it.
	PhaseConfirmed
	// PhaseReverted: the server rejected the change; the refresh replaced
	// the local guess.
	PhaseReverted
	// PhaseUnreconciled: the refresh after settling failed, so the local
	// state may still hold an unconfirmed guess until the next refresh.
	PhaseUnreconciled
)

func (p Phase) String() string {
	switch p {
	case PhaseOptimistic:
		return "optimistic"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseReverted:
		return "reverted"
	case PhaseUnreconciled:
		return "unreconciled"
	}
	return "unknown"
}

// Op is the handle of one committed change.
type Op struct {
	Label string

	done chan struct{}

	mu    sync.Mutex
	phase Phase
	err   error
}

func newOp(label string) *Op {
	return &Op{Label: label, done: make(chan struct{})}
}

func (o *Op) Done() <-chan struct{} {
	return o.done
}

func (o *Op) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Err is the mutation error, nil while in flight or after success.
func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Wait blocks until the op settles and returns its mutation error.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Op) settle(phase Phase, err error) {
	o.mu.Lock()
	o.phase = phase
	o.err = err
	o.mu.Unlock()
	close(o.done)
}

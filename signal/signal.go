// Package signal implements the one-shot, auto-reset observable events of
// §6 (delta_distributed, delta_received, tx_received): a consumer awaits
// the next firing, and the signal rearms immediately so a subsequent
// firing is not lost if nobody was waiting. Built directly on a buffered
// channel rather than a pack dependency: none of the corpus's libraries
// (protoactor-go's mailbox, go-ethereum's event.Feed) fit this single-slot
// wake-one shape without pulling in machinery the swarm does not need.
package signal

import "context"

// Signal is safe for concurrent Fire and Wait calls.
type Signal struct {
	ch chan struct{}
}

// New returns an unfired signal.
func New() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Fire wakes one pending (or the next) Wait call. Firing a signal nobody is
// waiting on is remembered for exactly one subsequent Wait.
func (s *Signal) Fire() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal fires or ctx is cancelled.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

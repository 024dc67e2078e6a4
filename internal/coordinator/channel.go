package coordinator

import (
	"context"
	"sync"
)

// Generation identifies one download channel. It increases on every activation.
type Generation uint64

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseMetadata   Phase = "metadata"
	PhaseAtlas      Phase = "atlas"
	PhaseComplete   Phase = "complete"
	PhaseHalted     Phase = "halted"
	PhaseSuperseded Phase = "superseded"
)

// channel is the per-activation download resource. Only the coordinator
// mutates it, under the coordinator mutex.
type channel struct {
	gen    Generation
	ctx    context.Context
	cancel context.CancelFunc

	phase     Phase
	inflight  string
	attempted map[int]struct{}
	delivered int
	failed    int

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

func newChannel(parent context.Context, gen Generation) *channel {
	ctx, cancel := context.WithCancel(parent)
	return &channel{
		gen:       gen,
		ctx:       ctx,
		cancel:    cancel,
		phase:     PhaseIdle,
		attempted: make(map[int]struct{}),
		done:      make(chan struct{}),
	}
}

// finish records the terminal phase once and releases waiters.
func (ch *channel) finish(phase Phase, err error) {
	ch.doneOnce.Do(func() {
		ch.phase = phase
		ch.inflight = ""
		ch.err = err
		ch.cancel()
		close(ch.done)
	})
}

func (ch *channel) finished() bool {
	select {
	case <-ch.done:
		return true
	default:
		return false
	}
}

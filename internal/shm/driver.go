package shm

import (
	"time"

	"scarabd/internal/term"
)

// Source resolves whichever pane is currently "active" for publication
// purposes, along with a stable hash identifying its owning session. ok
// is false when there is nothing to publish yet (no sessions at all).
type Source func() (sessionHash uint64, ts *term.TerminalState, ok bool)

// Driver ticks at the publisher's frame rate and republishes only when
// the source's TerminalState has actually changed sequence number,
// coalescing bursts of writes between ticks into at most one publish
// (spec.md §4.5) without requiring a condition variable wired through
// every terminal-state mutation site.
type Driver struct {
	publisher *Publisher
	source    Source
	tick      time.Duration

	lastSeq uint64
	stop    chan struct{}
	done    chan struct{}
}

// NewDriver builds a driver publishing through pub, sourced from src, at
// the given tick interval (falls back to DefaultFrameTick).
func NewDriver(pub *Publisher, src Source, tick time.Duration) *Driver {
	if tick <= 0 {
		tick = DefaultFrameTick
	}
	return &Driver{
		publisher: pub,
		source:    src,
		tick:      tick,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run blocks, publishing on every tick where the source's sequence number
// has advanced since the last publish. Returns when Stop is called.
func (d *Driver) Run() {
	defer close(d.done)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			sessionHash, ts, ok := d.source()
			if !ok {
				continue
			}
			seq := ts.Sequence()
			if seq == d.lastSeq {
				continue
			}
			if d.publisher.Publish(sessionHash, ts) {
				d.lastSeq = seq
			}
		}
	}
}

// Stop signals Run to return and waits for it to do so.
func (d *Driver) Stop() {
	close(d.stop)
	<-d.done
}

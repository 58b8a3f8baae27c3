package ipc

import (
	"time"

	"scarabd/internal/session"
	"scarabd/internal/term"
)

// markerPushTick is how often a bound client's active pane is polled for
// prompt-marker list changes. TerminalState exposes no change
// notification of its own, so this polls and diffs the same way
// shm.Driver polls and diffs TerminalState.Sequence() for publication.
const markerPushTick = 50 * time.Millisecond

// markerWatcher pushes a PromptMarkersUpdate to one client whenever its
// bound session's active pane gains prompt markers (spec.md §4.6,
// "PromptMarkersUpdate is sent on every prompt-marker list change"; §4.1
// OSC 133, "flush to clients via PromptMarkersUpdate").
type markerWatcher struct {
	stop chan struct{}
	done chan struct{}
}

// startMarkerWatcher begins watching sess on c's behalf. c.mu must already
// be held by the caller (ensureBound binds under it); stopMarkerWatcher
// takes the lock itself, so this must never be called with it held a
// second time.
func (c *clientConn) startMarkerWatcher(sess *session.Session) {
	w := &markerWatcher{stop: make(chan struct{}), done: make(chan struct{})}
	c.markers = w

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(markerPushTick)
		defer ticker.Stop()
		// Seed from the current count so only marker-list growth after the
		// watcher starts triggers a push, not the pane's pre-existing state.
		lastCount := 0
		if p, err := sess.ActivePane(); err == nil {
			lastCount = len(p.State().Markers())
		}
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				p, err := sess.ActivePane()
				if err != nil {
					continue
				}
				markers := p.State().Markers()
				if len(markers) == lastCount {
					continue
				}
				lastCount = len(markers)
				c.queue.Push(ControlMessage{
					Kind:    KindPromptMarkersUpdate,
					Markers: markersToWire(markers),
				})
			}
		}
	}()
}

// stopMarkerWatcher stops c's watcher goroutine, if one was started.
func (c *clientConn) stopMarkerWatcher() {
	c.mu.Lock()
	w := c.markers
	c.markers = nil
	c.mu.Unlock()
	if w == nil {
		return
	}
	close(w.stop)
	<-w.done
}

func markersToWire(markers []term.PromptMarker) []PromptMarkerWire {
	out := make([]PromptMarkerWire, len(markers))
	for i, m := range markers {
		w := PromptMarkerWire{
			Type:            uint8(m.Type),
			Line:            m.Line,
			TimestampMicros: m.TimestampMicros,
		}
		if m.ExitCode != nil {
			w.HasExitCode = true
			w.ExitCode = int32(*m.ExitCode)
		}
		out[i] = w
	}
	return out
}

// Package pluginhost implements plugin.HostEffects, the curated set of
// side effects plugin bytecode can trigger through FFI calls (spec.md
// §4.7). It is deliberately thin: the daemon has no client-push
// mechanism for arbitrary notifications yet, so every effect is logged
// and, where it has a concrete daemon-side consequence (keybindings),
// recorded for the caller to read back.
package pluginhost

import (
	"log"
	"sync"

	"scarabd/internal/plugin"
)

// Host is the daemon's plugin.HostEffects implementation. It is safe
// for concurrent use since hook calls run on their own goroutine per
// plugin.Dispatcher.callGuarded.
type Host struct {
	mu          sync.Mutex
	keybindings map[string]string
}

// New builds an empty Host.
func New() *Host {
	return &Host{keybindings: make(map[string]string)}
}

// Notify logs a plugin-requested notification. scarabd has no client
// push channel for arbitrary text yet (spec.md's Non-goals exclude a
// client renderer), so this is host-side observability only.
func (h *Host) Notify(title, body string) {
	log.Printf("plugin notify: %s: %s", title, body)
}

// ModifyLine logs a plugin's request to rewrite scrollback line
// lineIndex. Actually mutating scrollback from a hook callback would
// race the pane's own writer goroutine, so this is reported, not
// applied; on_output/on_input already give plugins a direct way to
// rewrite the bytes in flight.
func (h *Host) ModifyLine(lineIndex int64, newText string) {
	log.Printf("plugin modify_line: line %d -> %q (not applied to scrollback)", lineIndex, newText)
}

// RegisterKeybinding records sequence -> commandID so a future
// CommandSelected dispatch (ipc.KindCommandSelected) can be traced back
// to the plugin that asked for it.
func (h *Host) RegisterKeybinding(sequence, commandID string) {
	h.mu.Lock()
	h.keybindings[sequence] = commandID
	h.mu.Unlock()
	log.Printf("plugin register_keybinding: %s -> %s", sequence, commandID)
}

// EmitEvent logs a plugin-emitted custom event.
func (h *Host) EmitEvent(evt plugin.Event) {
	log.Printf("plugin event: %s %q", evt.Name, evt.Payload)
}

// Keybindings returns a snapshot of every sequence registered so far.
func (h *Host) Keybindings() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.keybindings))
	for k, v := range h.keybindings {
		out[k] = v
	}
	return out
}

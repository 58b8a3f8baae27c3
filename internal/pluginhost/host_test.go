package pluginhost

import (
	"testing"

	"scarabd/internal/plugin"
)

func TestHostRecordsKeybindings(t *testing.T) {
	h := New()
	h.RegisterKeybinding("ctrl-k", "open-palette")
	h.RegisterKeybinding("ctrl-j", "next-tab")

	got := h.Keybindings()
	if got["ctrl-k"] != "open-palette" || got["ctrl-j"] != "next-tab" {
		t.Fatalf("Keybindings() = %+v", got)
	}
}

func TestHostKeybindingsSnapshotIsIndependent(t *testing.T) {
	h := New()
	h.RegisterKeybinding("ctrl-k", "open-palette")
	snap := h.Keybindings()
	snap["ctrl-k"] = "tampered"

	if got := h.Keybindings(); got["ctrl-k"] != "open-palette" {
		t.Fatalf("internal map mutated via snapshot: %+v", got)
	}
}

func TestHostNotifyAndEmitEventDoNotPanic(t *testing.T) {
	h := New()
	h.Notify("title", "body")
	h.ModifyLine(3, "replacement")
	h.EmitEvent(plugin.Event{Name: "custom", Payload: "payload"})
}

package plugin

import "scarabd/internal/pane"

// HookChain adapts a Dispatcher to pane.HookChain, the injection point
// internal/pane already exposes. Hook dispatch here is host-wide rather
// than per-pane — plugin bytecode doesn't currently branch on which pane
// produced a chunk — so the pane ID argument is accepted only to
// satisfy the interface.
type HookChain struct {
	Dispatcher *Dispatcher
}

var _ pane.HookChain = HookChain{}

func (h HookChain) RunOutput(_ pane.ID, data []byte) []byte {
	return h.Dispatcher.RunOutput(data)
}

func (h HookChain) RunInput(_ pane.ID, data []byte) []byte {
	return h.Dispatcher.RunInput(data)
}

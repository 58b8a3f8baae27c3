// Package ipc implements the daemon's Unix-domain control protocol: a
// length-prefixed framing codec over ControlMessage, plus the connection
// server that binds clients to sessions and dispatches their messages
// (spec.md §4.6).
package ipc

// Kind tags which variant a ControlMessage carries. Unknown kinds are
// skipped on read rather than treated as a framing error, so older
// clients and a newer daemon (or vice versa) can coexist.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInput
	KindResize
	KindTabCreate
	KindTabClose
	KindTabSwitch
	KindPaneSplit
	KindPaneClose
	KindPaneFocus
	KindCommandSelected
	KindPromptMarkersUpdate
	KindError
)

// ControlMessage is the tagged union carried by every framed IPC
// message. Only the fields relevant to Kind are populated; the rest are
// zero value.
type ControlMessage struct {
	Kind Kind

	// SessionName binds the connection to a named session on the first
	// message the client sends. Empty means the default session. Ignored on
	// every subsequent message once the client is bound; if the bound
	// session is deleted, later messages get an error reply.
	SessionName string

	// Input
	Data []byte

	// Resize
	Cols, Rows int

	// TabCreate
	Title string

	// TabClose / TabSwitch / PaneSplit / PaneClose / PaneFocus share
	// these identifiers loosely typed as strings/uint64 on the wire;
	// the server interprets them against the bound session.
	TabID  uint64
	PaneID uint64

	// PaneSplit
	Direction string // "horizontal" | "vertical"

	// CommandSelected: opaque payload forwarded to the plugin dispatcher.
	CommandID string

	// PromptMarkersUpdate (daemon -> client push)
	Markers []PromptMarkerWire

	// Error (daemon -> client push, replies to a rejected request)
	ErrorText string
}

// PromptMarkerWire is the wire form of term.PromptMarker, decoupled from
// the internal representation so the framing codec doesn't import
// internal/term directly.
type PromptMarkerWire struct {
	Type            uint8
	Line            int64
	HasExitCode     bool
	ExitCode        int32
	TimestampMicros int64
}

package plugin

import "fmt"

// Event is a custom, plugin-emitted event forwarded to whatever
// subscribes to it (a future client push, or another plugin).
type Event struct {
	Name    string
	Payload string
}

// HostEffects is the curated surface plugin code can reach through FFI
// calls (spec.md §4.7: "produce notification, modify line, register
// keybinding, emit custom event"). pluginhost.Host implements this;
// NewDispatcher binds it into the FFI table once.
type HostEffects interface {
	Notify(title, body string)
	ModifyLine(lineIndex int64, newText string)
	RegisterKeybinding(sequence, commandID string)
	EmitEvent(evt Event)
}

// NewFFITable builds the FFI table bound to one HostEffects instance.
// Plugin bytecode importing a name absent from this table fails to
// load (enforced by VM.New).
func NewFFITable(host HostEffects) FFITable {
	return FFITable{
		"host.notify": func(args []Value) (Value, error) {
			if len(args) < 2 {
				return Value{}, fmt.Errorf("host.notify requires (title, body)")
			}
			host.Notify(args[0].S, args[1].S)
			return UnitValue(), nil
		},
		"host.modify_line": func(args []Value) (Value, error) {
			if len(args) < 2 {
				return Value{}, fmt.Errorf("host.modify_line requires (line_index, text)")
			}
			host.ModifyLine(args[0].I, args[1].S)
			return UnitValue(), nil
		},
		"host.register_keybinding": func(args []Value) (Value, error) {
			if len(args) < 2 {
				return Value{}, fmt.Errorf("host.register_keybinding requires (sequence, command_id)")
			}
			host.RegisterKeybinding(args[0].S, args[1].S)
			return UnitValue(), nil
		},
		"host.emit_event": func(args []Value) (Value, error) {
			if len(args) < 2 {
				return Value{}, fmt.Errorf("host.emit_event requires (name, payload)")
			}
			host.EmitEvent(Event{Name: args[0].S, Payload: args[1].S})
			return UnitValue(), nil
		},
	}
}

package plugin

import (
	"testing"
	"time"
)

func buildAddModule(t *testing.T) *Module {
	t.Helper()
	bytecode := []byte{
		byte(OpLoad), 0, 0, 0, 0,
		byte(OpLoad), 1, 0, 0, 0,
		byte(OpAdd),
		byte(OpRet),
	}
	m := &Module{
		Version: BytecodeVersion,
		Functions: []Function{{
			Name:      "add",
			NumParams: 2,
			NumLocals: 2,
			Bytecode:  bytecode,
		}},
		EntryPoint: 0,
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return m
}

func TestVMRunAddsTwoArgs(t *testing.T) {
	m := buildAddModule(t)
	vm, err := New(m, nil, DefaultSandbox())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := vm.Run([]Value{IntValue(3), IntValue(4)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Kind != KindI64 || result.I != 7 {
		t.Fatalf("result = %+v, want I64(7)", result)
	}
}

func TestVMDivisionByZeroTraps(t *testing.T) {
	bytecode := []byte{
		byte(OpPush), 0, 0, 0, 0,
		byte(OpPush), 1, 0, 0, 0,
		byte(OpDiv),
		byte(OpRet),
	}
	m := &Module{
		Version:   BytecodeVersion,
		Constants: []Value{IntValue(1), IntValue(0)},
		Functions: []Function{{Name: "main", Bytecode: bytecode}},
	}
	vm, err := New(m, nil, DefaultSandbox())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := vm.Run(nil); err == nil {
		t.Fatal("expected division by zero to trap")
	}
}

func TestVMCallFFIInvokesHostFunction(t *testing.T) {
	var called string
	table := FFITable{
		"host.notify": func(args []Value) (Value, error) {
			called = args[0].S
			return UnitValue(), nil
		},
	}
	bytecode := []byte{
		byte(OpPush), 0, 0, 0, 0,
		byte(OpCallFFI), 0, 0, 0, 0,
		byte(OpRet),
	}
	m := &Module{
		Version:    BytecodeVersion,
		Constants:  []Value{StringValue("hello")},
		Functions:  []Function{{Name: "main", Bytecode: bytecode}},
		FFIImports: []string{"host.notify"},
	}
	vm, err := New(m, table, DefaultSandbox())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := vm.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called != "hello" {
		t.Fatalf("FFI call got %q, want hello", called)
	}
}

func TestVMUnresolvedFFIImportFailsLoad(t *testing.T) {
	m := &Module{
		Version:    BytecodeVersion,
		Functions:  []Function{{Name: "main", Bytecode: []byte{byte(OpHalt)}}},
		FFIImports: []string{"host.unregistered"},
	}
	if _, err := New(m, FFITable{}, DefaultSandbox()); err == nil {
		t.Fatal("expected unresolved FFI import to fail load")
	}
}

func TestVMInstructionBudgetTraps(t *testing.T) {
	// An infinite loop: jump back to offset 0 forever.
	bytecode := []byte{byte(OpJump), 0xFB, 0xFF, 0xFF, 0xFF} // jump -5 -> self
	m := &Module{
		Version:   BytecodeVersion,
		Functions: []Function{{Name: "main", Bytecode: bytecode}},
	}
	vm, err := New(m, nil, Sandbox{MaxValueStack: 16, MaxCallStack: 16, MaxInstructions: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := vm.Run(nil); err == nil {
		t.Fatal("expected instruction budget to trap an infinite loop")
	}
}

func TestVMInvalidLocalIndexFailsValidation(t *testing.T) {
	m := &Module{
		Version: BytecodeVersion,
		Functions: []Function{{
			Name:      "main",
			NumLocals: 1,
			Bytecode:  []byte{byte(OpLoad), 5, 0, 0, 0, byte(OpRet)},
		}},
	}
	if err := m.Validate(); err == nil {
		t.Fatal("expected out-of-range local index to fail validation")
	}
}

func TestDefaultSandboxMatchesSpecDefaults(t *testing.T) {
	s := DefaultSandbox()
	if s.MaxValueStack <= 0 || s.MaxCallStack <= 0 || s.MaxInstructions <= 0 {
		t.Fatal("DefaultSandbox should have positive limits")
	}
}

func TestCallGuardedTimesOutSlowHook(t *testing.T) {
	// A busy loop large enough to exceed a very short timeout given the
	// instruction budget is effectively unbounded for this test.
	bytecode := []byte{byte(OpJump), 0xFB, 0xFF, 0xFF, 0xFF}
	m := &Module{
		Version:   BytecodeVersion,
		Functions: []Function{{Name: "on_output", Bytecode: bytecode}},
	}
	d := NewDispatcher(noopHost{}, time.Millisecond, 3, Sandbox{MaxValueStack: 16, MaxCallStack: 16, MaxInstructions: 1 << 30})
	if err := d.Register(Plugin{Meta: Metadata{Name: "slow", APIVersion: HostAPIVersion}, Module: m}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	out := d.RunOutput([]byte("abc"))
	if string(out) != "abc" {
		t.Fatalf("expected original bytes to flow through on timeout, got %q", out)
	}
}

type noopHost struct{}

func (noopHost) Notify(string, string)           {}
func (noopHost) ModifyLine(int64, string)         {}
func (noopHost) RegisterKeybinding(string, string) {}
func (noopHost) EmitEvent(Event)                   {}

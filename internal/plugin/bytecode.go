// Package plugin implements the hook dispatcher and the bespoke Fusabi
// bytecode VM that scarabd's plugins run on (spec.md §4.7, §6 "Plugin
// Module Format"). Compiled modules and source scripts both compile down
// to the same Module representation before execution.
package plugin

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a compiled Fusabi bytecode module.
var Magic = [4]byte{'F', 'Z', 'B', 0}

// BytecodeVersion is the only version this VM understands.
const BytecodeVersion = 1

// Limits enforced at load time (spec.md §6).
const (
	MaxConstants        = 65536
	MaxFunctions        = 4096
	MaxFunctionBytecode = 1024 * 1024
	MaxNameLength       = 256
)

// ValueKind tags a Value's type.
type ValueKind uint8

const (
	KindUnit ValueKind = iota
	KindBool
	KindI64
	KindF64
	KindString
)

// Value is the VM's tagged runtime value. There is a single integer and
// a single float width (I64/F64) rather than the original's I32/I64/F32/F64
// split — scarabd's FFI surface (notifications, line edits, keybindings,
// events) never needs anything narrower, and collapsing the width
// simplifies arithmetic without losing expressiveness.
type Value struct {
	Kind ValueKind
	I    int64
	F    float64
	S    string
	B    bool
}

func UnitValue() Value            { return Value{Kind: KindUnit} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, B: b} }
func IntValue(i int64) Value      { return Value{Kind: KindI64, I: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindF64, F: f} }
func StringValue(s string) Value { return Value{Kind: KindString, S: s} }

func (v Value) AsBool() (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("plugin: expected Bool, got %v", v.Kind)
	}
	return v.B, nil
}

func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.B
	case KindI64:
		return v.I != 0
	case KindF64:
		return v.F != 0
	case KindString:
		return v.S != ""
	default:
		return false
	}
}

// Function is one compiled function: its name (VM.FunctionIndex looks
// hook entry points up by it), parameter
// count, local-variable count, and its bytecode body.
type Function struct {
	Name       string
	NumParams  int
	NumLocals  int
	Bytecode   []byte
}

// Module is a fully loaded, validated bytecode module ready to execute.
type Module struct {
	Version     uint32
	Constants   []Value
	Functions   []Function
	EntryPoint  int
	FFIImports  []string
}

// Validate enforces the structural limits from spec.md §6 and checks
// every function's bytecode decodes cleanly and references only
// in-range locals.
func (m *Module) Validate() error {
	if m.Version != BytecodeVersion {
		return fmt.Errorf("plugin: unsupported bytecode version %d", m.Version)
	}
	if len(m.Constants) > MaxConstants {
		return fmt.Errorf("plugin: too many constants (%d > %d)", len(m.Constants), MaxConstants)
	}
	if len(m.Functions) > MaxFunctions {
		return fmt.Errorf("plugin: too many functions (%d > %d)", len(m.Functions), MaxFunctions)
	}
	if m.EntryPoint < 0 || m.EntryPoint >= len(m.Functions) {
		return fmt.Errorf("plugin: invalid entry point %d", m.EntryPoint)
	}
	for i, fn := range m.Functions {
		if len(fn.Name) > MaxNameLength {
			return fmt.Errorf("plugin: function %d name exceeds %d bytes", i, MaxNameLength)
		}
		if len(fn.Bytecode) > MaxFunctionBytecode {
			return fmt.Errorf("plugin: function %d bytecode exceeds %d bytes", i, MaxFunctionBytecode)
		}
		if err := validateOpcodes(fn); err != nil {
			return fmt.Errorf("plugin: function %d: %w", i, err)
		}
	}
	return nil
}

func validateOpcodes(fn Function) error {
	pc := 0
	for pc < len(fn.Bytecode) {
		op := Opcode(fn.Bytecode[pc])
		size, hasOperand := opcodeSize(op)
		if size == 0 {
			return fmt.Errorf("invalid opcode 0x%02x at %d", fn.Bytecode[pc], pc)
		}
		if pc+size > len(fn.Bytecode) {
			return fmt.Errorf("truncated operand for opcode 0x%02x at %d", fn.Bytecode[pc], pc)
		}
		if hasOperand && (op == OpLoad || op == OpStore) {
			local := binary.LittleEndian.Uint32(fn.Bytecode[pc+1 : pc+5])
			if int(local) >= fn.NumLocals {
				return fmt.Errorf("local index %d out of range (locals=%d) at %d", local, fn.NumLocals, pc)
			}
		}
		pc += size
	}
	return nil
}

// Opcode is a single bytecode instruction tag (spec.md §6: "1-byte tag,
// optional 4-byte operand").
type Opcode byte

const (
	OpNop Opcode = 0x00
	OpPush Opcode = 0x01
	OpPop  Opcode = 0x02
	OpDup  Opcode = 0x03
	OpLoad  Opcode = 0x04
	OpStore Opcode = 0x05

	OpCall    Opcode = 0x10
	OpCallFFI Opcode = 0x11
	OpRet     Opcode = 0x12
	OpJump       Opcode = 0x13
	OpJumpIf     Opcode = 0x14
	OpJumpIfNot  Opcode = 0x15

	OpAdd Opcode = 0x20
	OpSub Opcode = 0x21
	OpMul Opcode = 0x22
	OpDiv Opcode = 0x23
	OpMod Opcode = 0x24
	OpNeg Opcode = 0x25

	OpEq Opcode = 0x30
	OpNe Opcode = 0x31
	OpLt Opcode = 0x32
	OpLe Opcode = 0x33
	OpGt Opcode = 0x34
	OpGe Opcode = 0x35

	OpAnd Opcode = 0x40
	OpOr  Opcode = 0x41
	OpNot Opcode = 0x42

	OpHalt Opcode = 0xFF
)

// opcodeSize returns the total instruction size (tag + operand) and
// whether it carries a 4-byte operand. 0 means an unrecognized opcode.
func opcodeSize(op Opcode) (size int, hasOperand bool) {
	switch op {
	case OpNop, OpPop, OpDup, OpRet,
		OpAdd, OpSub, OpMul, OpDiv, OpMod, OpNeg,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe,
		OpAnd, OpOr, OpNot, OpHalt:
		return 1, false
	case OpPush, OpLoad, OpStore, OpCall, OpCallFFI, OpJump, OpJumpIf, OpJumpIfNot:
		return 5, true
	default:
		return 0, false
	}
}

// operandAt decodes the 4-byte little-endian operand following a tag byte
// at pc (caller guarantees bounds via validateOpcodes).
func operandAt(bytecode []byte, pc int) int32 {
	return int32(binary.LittleEndian.Uint32(bytecode[pc+1 : pc+5]))
}

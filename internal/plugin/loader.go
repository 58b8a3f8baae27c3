package plugin

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// LoadCompiled parses a compiled Fusabi bytecode module (spec.md §6:
// magic `FZB\0`, version u32, constant pool, function table, entry
// point, FFI imports).
func LoadCompiled(data []byte) (*Module, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("plugin: read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("plugin: bad magic %v", magic)
	}

	version, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("plugin: read version: %w", err)
	}

	constants, err := readConstants(r)
	if err != nil {
		return nil, fmt.Errorf("plugin: read constants: %w", err)
	}

	functions, err := readFunctions(r)
	if err != nil {
		return nil, fmt.Errorf("plugin: read functions: %w", err)
	}

	entryPoint, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("plugin: read entry point: %w", err)
	}

	ffiImports, err := readStrings(r)
	if err != nil {
		return nil, fmt.Errorf("plugin: read ffi imports: %w", err)
	}

	module := &Module{
		Version:    version,
		Constants:  constants,
		Functions:  functions,
		EntryPoint: int(entryPoint),
		FFIImports: ffiImports,
	}
	if err := module.Validate(); err != nil {
		return nil, err
	}
	return module, nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	if n > MaxNameLength*4 {
		return "", fmt.Errorf("string length %d implausibly large", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readStrings(r io.Reader) ([]string, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func readConstants(r io.Reader) ([]Value, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxConstants {
		return nil, fmt.Errorf("constant pool of %d exceeds max %d", n, MaxConstants)
	}
	out := make([]Value, n)
	for i := range out {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readValue(r io.Reader) (Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Value{}, err
	}
	switch ValueKind(tag[0]) {
	case KindUnit:
		return UnitValue(), nil
	case KindBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Value{}, err
		}
		return BoolValue(b[0] != 0), nil
	case KindI64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Value{}, err
		}
		return IntValue(int64(binary.LittleEndian.Uint64(buf[:]))), nil
	case KindF64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Value{}, err
		}
		bits := binary.LittleEndian.Uint64(buf[:])
		return FloatValue(math.Float64frombits(bits)), nil
	case KindString:
		s, err := readString(r)
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	default:
		return Value{}, fmt.Errorf("unknown constant tag %d", tag[0])
	}
}

func readFunctions(r io.Reader) ([]Function, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFunctions {
		return nil, fmt.Errorf("function table of %d exceeds max %d", n, MaxFunctions)
	}
	out := make([]Function, n)
	for i := range out {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		params, err := readU32(r)
		if err != nil {
			return nil, err
		}
		locals, err := readU32(r)
		if err != nil {
			return nil, err
		}
		codeLen, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if codeLen > MaxFunctionBytecode {
			return nil, fmt.Errorf("function %q bytecode of %d exceeds max %d", name, codeLen, MaxFunctionBytecode)
		}
		code := make([]byte, codeLen)
		if _, err := io.ReadFull(r, code); err != nil {
			return nil, err
		}
		out[i] = Function{Name: name, NumParams: int(params), NumLocals: int(locals), Bytecode: code}
	}
	return out, nil
}

// LoadScript compiles a plain-text Fusabi script into the same Module
// representation the compiled loader produces (spec.md §6: "the daemon
// compiles it at load time using the same pipeline as the compiled
// format produces"). The script format here is intentionally minimal —
// one instruction per line, constants and labels resolved by name — it
// exists to exercise the same Module/VM path as a .fzb file, not to be
// a general-purpose language.
func LoadScript(src string) (*Module, error) {
	var constants []Value
	var bytecode []byte
	labels := map[string]int{}
	var fixups []fixup

	scanner := bufio.NewScanner(strings.NewReader(src))
	var ffiImports []string
	ffiIndex := map[string]int{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") {
			labels[strings.TrimSuffix(line, ":")] = len(bytecode)
			continue
		}
		fields := strings.Fields(line)
		mnemonic := strings.ToLower(fields[0])
		arg := ""
		if len(fields) > 1 {
			arg = strings.Join(fields[1:], " ")
		}

		switch mnemonic {
		case "push":
			idx := internConstant(&constants, parseScriptValue(arg))
			bytecode = append(bytecode, byte(OpPush))
			bytecode = appendU32(bytecode, uint32(idx))
		case "pop":
			bytecode = append(bytecode, byte(OpPop))
		case "dup":
			bytecode = append(bytecode, byte(OpDup))
		case "load":
			n, _ := strconv.Atoi(arg)
			bytecode = append(bytecode, byte(OpLoad))
			bytecode = appendU32(bytecode, uint32(n))
		case "store":
			n, _ := strconv.Atoi(arg)
			bytecode = append(bytecode, byte(OpStore))
			bytecode = appendU32(bytecode, uint32(n))
		case "callffi":
			idx, ok := ffiIndex[arg]
			if !ok {
				idx = len(ffiImports)
				ffiImports = append(ffiImports, arg)
				ffiIndex[arg] = idx
			}
			bytecode = append(bytecode, byte(OpCallFFI))
			bytecode = appendU32(bytecode, uint32(idx))
		case "ret":
			bytecode = append(bytecode, byte(OpRet))
		case "jump", "jumpif", "jumpifnot":
			op := map[string]Opcode{"jump": OpJump, "jumpif": OpJumpIf, "jumpifnot": OpJumpIfNot}[mnemonic]
			bytecode = append(bytecode, byte(op))
			fixups = append(fixups, fixup{pos: len(bytecode), label: arg})
			bytecode = appendU32(bytecode, 0)
		case "add", "sub", "mul", "div", "mod", "neg",
			"eq", "ne", "lt", "le", "gt", "ge",
			"and", "or", "not", "halt", "nop":
			bytecode = append(bytecode, byte(mnemonicOpcode(mnemonic)))
		default:
			return nil, fmt.Errorf("plugin: unknown script instruction %q", mnemonic)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("plugin: scan script: %w", err)
	}

	for _, fx := range fixups {
		target, ok := labels[fx.label]
		if !ok {
			return nil, fmt.Errorf("plugin: undefined label %q", fx.label)
		}
		offset := int32(target - fx.pos - 4)
		binary.LittleEndian.PutUint32(bytecode[fx.pos:fx.pos+4], uint32(offset))
	}

	module := &Module{
		Version:   BytecodeVersion,
		Constants: constants,
		Functions: []Function{{
			Name:      "main",
			NumLocals: countLocals(bytecode),
			Bytecode:  bytecode,
		}},
		EntryPoint: 0,
		FFIImports: ffiImports,
	}
	if err := module.Validate(); err != nil {
		return nil, err
	}
	return module, nil
}

type fixup struct {
	pos   int
	label string
}

func internConstant(pool *[]Value, v Value) int {
	*pool = append(*pool, v)
	return len(*pool) - 1
}

func parseScriptValue(tok string) Value {
	switch {
	case tok == "true":
		return BoolValue(true)
	case tok == "false":
		return BoolValue(false)
	case strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2:
		return StringValue(tok[1 : len(tok)-1])
	default:
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return IntValue(i)
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return FloatValue(f)
		}
		return StringValue(tok)
	}
}

func mnemonicOpcode(mnemonic string) Opcode {
	switch mnemonic {
	case "add":
		return OpAdd
	case "sub":
		return OpSub
	case "mul":
		return OpMul
	case "div":
		return OpDiv
	case "mod":
		return OpMod
	case "neg":
		return OpNeg
	case "eq":
		return OpEq
	case "ne":
		return OpNe
	case "lt":
		return OpLt
	case "le":
		return OpLe
	case "gt":
		return OpGt
	case "ge":
		return OpGe
	case "and":
		return OpAnd
	case "or":
		return OpOr
	case "not":
		return OpNot
	case "halt":
		return OpHalt
	default:
		return OpNop
	}
}

// countLocals scans store/load operands to size the single implicit
// "main" function's local slots for the minimal script format, where
// locals aren't declared up front.
func countLocals(bytecode []byte) int {
	max := 0
	pc := 0
	for pc < len(bytecode) {
		op := Opcode(bytecode[pc])
		size, hasOperand := opcodeSize(op)
		if size == 0 {
			break
		}
		if hasOperand && (op == OpLoad || op == OpStore) {
			n := int(binary.LittleEndian.Uint32(bytecode[pc+1 : pc+5]))
			if n+1 > max {
				max = n + 1
			}
		}
		pc += size
	}
	return max
}

func appendU32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}


package plugin

import (
	"fmt"
)

// Sandbox limits bound one hook invocation's resource usage (spec.md
// §4.7, "Sandbox"): no unbounded stack growth, no runaway loops.
type Sandbox struct {
	MaxValueStack   int
	MaxCallStack    int
	MaxInstructions int
}

// DefaultSandbox matches the defaults named throughout spec.md.
func DefaultSandbox() Sandbox {
	return Sandbox{MaxValueStack: 1024, MaxCallStack: 256, MaxInstructions: 1_000_000}
}

// FFIFunc is a host function exposed to plugin bytecode. It receives the
// arguments popped off the value stack (in call order) and returns one
// result value.
type FFIFunc func(args []Value) (Value, error)

// FFITable is the curated set of host functions plugin code may call
// in; names not present here fail module load (spec.md §4.7: "FFI names
// are resolved at load time against this table; unknown names fail the
// load").
type FFITable map[string]FFIFunc

// VM executes one Module against a given FFITable. A VM is not safe for
// concurrent use; the dispatcher creates one per hook invocation.
type VM struct {
	module  *Module
	ffi     []FFIFunc
	sandbox Sandbox

	stack      []Value
	frames     []frame
	instrCount int
}

type frame struct {
	fn      *Function
	pc      int
	basePtr int
}

// VmError distinguishes sandbox/trap failures from ordinary execution
// errors so the dispatcher can log them uniformly.
type VmError struct {
	msg string
}

func (e *VmError) Error() string { return e.msg }

func vmErrorf(format string, args ...any) error {
	return &VmError{msg: fmt.Sprintf("plugin vm: "+format, args...)}
}

// New resolves module's FFI imports against table (failing if any name
// is unregistered) and returns a VM ready to Run.
func New(module *Module, table FFITable, sandbox Sandbox) (*VM, error) {
	if err := module.Validate(); err != nil {
		return nil, err
	}
	ffi := make([]FFIFunc, len(module.FFIImports))
	for i, name := range module.FFIImports {
		fn, ok := table[name]
		if !ok {
			return nil, fmt.Errorf("plugin: unresolved FFI import %q", name)
		}
		ffi[i] = fn
	}
	return &VM{module: module, ffi: ffi, sandbox: sandbox}, nil
}

// Run executes the module's entry point and returns its final stack
// value, or Unit if the stack emptied without a value.
func (vm *VM) Run(args []Value) (Value, error) {
	return vm.run(vm.module.EntryPoint, args)
}

// FunctionIndex returns the index of the function named name, or -1 if
// the module declares no such function. Plugin hook dispatch uses this
// to look up "on_output", "on_input", etc. by name; a hook the plugin
// doesn't implement is simply absent, not an error.
func (vm *VM) FunctionIndex(name string) int {
	for i, fn := range vm.module.Functions {
		if fn.Name == name {
			return i
		}
	}
	return -1
}

// RunFunction executes the function at idx (as returned by
// FunctionIndex) with args.
func (vm *VM) RunFunction(idx int, args []Value) (Value, error) {
	if idx < 0 || idx >= len(vm.module.Functions) {
		return Value{}, vmErrorf("invalid function index %d", idx)
	}
	return vm.run(idx, args)
}

func (vm *VM) run(fnIdx int, args []Value) (Value, error) {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.instrCount = 0

	if err := vm.pushFrame(fnIdx, args); err != nil {
		return Value{}, err
	}

	for len(vm.frames) > 0 {
		if err := vm.step(); err != nil {
			return Value{}, err
		}
	}

	if len(vm.stack) == 0 {
		return UnitValue(), nil
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *VM) pushFrame(fnIdx int, args []Value) error {
	if len(vm.frames) >= vm.sandbox.MaxCallStack {
		return vmErrorf("call stack overflow (max %d)", vm.sandbox.MaxCallStack)
	}
	fn := &vm.module.Functions[fnIdx]
	base := len(vm.stack)
	for i := 0; i < fn.NumLocals; i++ {
		if i < len(args) {
			vm.stack = append(vm.stack, args[i])
		} else {
			vm.stack = append(vm.stack, UnitValue())
		}
	}
	if len(vm.stack) > vm.sandbox.MaxValueStack {
		return vmErrorf("value stack overflow (max %d)", vm.sandbox.MaxValueStack)
	}
	vm.frames = append(vm.frames, frame{fn: fn, pc: 0, basePtr: base})
	return nil
}

func (vm *VM) step() error {
	vm.instrCount++
	if vm.instrCount > vm.sandbox.MaxInstructions {
		return vmErrorf("instruction budget exceeded (max %d)", vm.sandbox.MaxInstructions)
	}

	f := &vm.frames[len(vm.frames)-1]
	if f.pc >= len(f.fn.Bytecode) {
		return vmErrorf("program counter ran off the end of %q", f.fn.Name)
	}
	op := Opcode(f.fn.Bytecode[f.pc])
	size, hasOperand := opcodeSize(op)
	var operand int32
	if hasOperand {
		operand = operandAt(f.fn.Bytecode, f.pc)
	}
	f.pc += size

	switch op {
	case OpNop:
		// no-op

	case OpPush:
		idx := int(operand)
		if idx < 0 || idx >= len(vm.module.Constants) {
			return vmErrorf("constant index %d out of range", idx)
		}
		return vm.push(vm.module.Constants[idx])

	case OpPop:
		_, err := vm.pop()
		return err

	case OpDup:
		v, err := vm.peek()
		if err != nil {
			return err
		}
		return vm.push(v)

	case OpLoad:
		idx := f.basePtr + int(operand)
		if idx < 0 || idx >= len(vm.stack) {
			return vmErrorf("local load out of range")
		}
		return vm.push(vm.stack[idx])

	case OpStore:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		idx := f.basePtr + int(operand)
		if idx < 0 || idx >= len(vm.stack) {
			return vmErrorf("local store out of range")
		}
		vm.stack[idx] = v

	case OpCall:
		fnIdx := int(operand)
		if fnIdx < 0 || fnIdx >= len(vm.module.Functions) {
			return vmErrorf("call to invalid function %d", fnIdx)
		}
		callee := &vm.module.Functions[fnIdx]
		args := make([]Value, callee.NumParams)
		for i := callee.NumParams - 1; i >= 0; i-- {
			v, err := vm.pop()
			if err != nil {
				return err
			}
			args[i] = v
		}
		return vm.pushFrame(fnIdx, args)

	case OpCallFFI:
		idx := int(operand)
		if idx < 0 || idx >= len(vm.ffi) {
			return vmErrorf("call to invalid FFI import %d", idx)
		}
		// FFI arity is whatever is currently on the stack above the
		// frame's locals; FFI functions are variadic from the VM's
		// perspective and validate their own argument count.
		n := len(vm.stack) - (f.basePtr + f.fn.NumLocals)
		if n < 0 {
			n = 0
		}
		args := append([]Value(nil), vm.stack[len(vm.stack)-n:]...)
		vm.stack = vm.stack[:len(vm.stack)-n]
		result, err := vm.ffi[idx](args)
		if err != nil {
			return vmErrorf("ffi call failed: %v", err)
		}
		return vm.push(result)

	case OpRet:
		var ret Value
		if len(vm.stack) > f.basePtr {
			ret = vm.stack[len(vm.stack)-1]
		} else {
			ret = UnitValue()
		}
		vm.stack = vm.stack[:f.basePtr]
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) > 0 {
			return vm.push(ret)
		}
		vm.stack = append(vm.stack, ret)

	case OpJump:
		return vm.jump(f, operand)

	case OpJumpIf:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v.Truthy() {
			return vm.jump(f, operand)
		}

	case OpJumpIfNot:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if !v.Truthy() {
			return vm.jump(f, operand)
		}

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return vm.arith(op)

	case OpNeg:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		switch v.Kind {
		case KindI64:
			return vm.push(IntValue(-v.I))
		case KindF64:
			return vm.push(FloatValue(-v.F))
		default:
			return vmErrorf("neg: unsupported operand type")
		}

	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return vm.compare(op)

	case OpAnd:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(BoolValue(a.Truthy() && b.Truthy()))

	case OpOr:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(BoolValue(a.Truthy() || b.Truthy()))

	case OpNot:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(BoolValue(!v.Truthy()))

	case OpHalt:
		vm.frames = vm.frames[:0]

	default:
		return vmErrorf("unimplemented opcode 0x%02x", op)
	}
	return nil
}

func (vm *VM) jump(f *frame, offset int32) error {
	target := f.pc + int(offset)
	if target < 0 || target > len(f.fn.Bytecode) {
		return vmErrorf("jump target %d out of range", target)
	}
	f.pc = target
	return nil
}

func (vm *VM) push(v Value) error {
	if len(vm.stack) >= vm.sandbox.MaxValueStack {
		return vmErrorf("value stack overflow (max %d)", vm.sandbox.MaxValueStack)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (Value, error) {
	if len(vm.stack) == 0 {
		return Value{}, vmErrorf("pop from empty stack")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) peek() (Value, error) {
	if len(vm.stack) == 0 {
		return Value{}, vmErrorf("peek on empty stack")
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *VM) arith(op Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if a.Kind == KindF64 || b.Kind == KindF64 {
		af, bf := toFloat(a), toFloat(b)
		switch op {
		case OpAdd:
			return vm.push(FloatValue(af + bf))
		case OpSub:
			return vm.push(FloatValue(af - bf))
		case OpMul:
			return vm.push(FloatValue(af * bf))
		case OpDiv:
			if bf == 0 {
				return vmErrorf("division by zero")
			}
			return vm.push(FloatValue(af / bf))
		default:
			return vmErrorf("mod is not defined for floats")
		}
	}
	ai, bi := a.I, b.I
	switch op {
	case OpAdd:
		return vm.push(IntValue(ai + bi))
	case OpSub:
		return vm.push(IntValue(ai - bi))
	case OpMul:
		return vm.push(IntValue(ai * bi))
	case OpDiv:
		if bi == 0 {
			return vmErrorf("division by zero")
		}
		return vm.push(IntValue(ai / bi))
	case OpMod:
		if bi == 0 {
			return vmErrorf("division by zero")
		}
		return vm.push(IntValue(ai % bi))
	}
	return vmErrorf("unreachable arithmetic opcode")
}

func (vm *VM) compare(op Opcode) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}

	var cmp int
	switch {
	case a.Kind == KindString && b.Kind == KindString:
		switch {
		case a.S < b.S:
			cmp = -1
		case a.S > b.S:
			cmp = 1
		}
	default:
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	}

	switch op {
	case OpEq:
		return vm.push(BoolValue(cmp == 0))
	case OpNe:
		return vm.push(BoolValue(cmp != 0))
	case OpLt:
		return vm.push(BoolValue(cmp < 0))
	case OpLe:
		return vm.push(BoolValue(cmp <= 0))
	case OpGt:
		return vm.push(BoolValue(cmp > 0))
	case OpGe:
		return vm.push(BoolValue(cmp >= 0))
	}
	return vmErrorf("unreachable comparison opcode")
}

func toFloat(v Value) float64 {
	switch v.Kind {
	case KindF64:
		return v.F
	case KindI64:
		return float64(v.I)
	case KindBool:
		if v.B {
			return 1
		}
		return 0
	default:
		return 0
	}
}

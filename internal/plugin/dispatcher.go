package plugin

import (
	"fmt"
	"log"
	"time"
)

// Action is a hook's effect on the chain (spec.md §4.7).
type Action int

const (
	ActionContinue Action = iota
	ActionStop
	ActionModify
)

// Metadata identifies a plugin and the host API version it targets.
type Metadata struct {
	Name       string
	Version    string
	APIVersion int
	Author     string
}

// HostAPIVersion is the API version this dispatcher implements. Plugins
// declaring an incompatible version are refused at registration.
const HostAPIVersion = 1

// Plugin pairs a loaded Module with its declared metadata.
type Plugin struct {
	Meta   Metadata
	Module *Module
}

// managedPlugin tracks one registered plugin's runtime health.
type managedPlugin struct {
	plugin       Plugin
	vm           *VM
	enabled      bool
	failureCount int
}

// Dispatcher runs the on_output/on_input/on_resize hook chain across
// every enabled plugin, in registration order, isolating each call
// behind a timeout and auto-disabling plugins that fail repeatedly
// (spec.md §4.7), generalized from the teacher's synchronous daemon
// loop into a per-hook goroutine + timeout since the bytecode VM itself
// has no cooperative yield points to interrupt mid-instruction.
type Dispatcher struct {
	host        HostEffects
	ffi         FFITable
	sandbox     Sandbox
	hookTimeout time.Duration
	maxFailures int

	plugins []*managedPlugin
}

// NewDispatcher builds a dispatcher whose FFI table is bound to host.
func NewDispatcher(host HostEffects, hookTimeout time.Duration, maxFailures int, sandbox Sandbox) *Dispatcher {
	return &Dispatcher{
		host:        host,
		ffi:         NewFFITable(host),
		sandbox:     sandbox,
		hookTimeout: hookTimeout,
		maxFailures: maxFailures,
	}
}

// Register loads plugin's module against the dispatcher's FFI table and
// runs its on_load hook (if present), refusing plugins whose API
// version the host doesn't support.
func (d *Dispatcher) Register(p Plugin) error {
	if p.Meta.APIVersion != HostAPIVersion {
		return fmt.Errorf("plugin: %s declares API version %d, host supports %d",
			p.Meta.Name, p.Meta.APIVersion, HostAPIVersion)
	}
	vm, err := New(p.Module, d.ffi, d.sandbox)
	if err != nil {
		return fmt.Errorf("plugin: load %s: %w", p.Meta.Name, err)
	}
	mp := &managedPlugin{plugin: p, vm: vm, enabled: true}
	d.plugins = append(d.plugins, mp)

	if idx := vm.FunctionIndex("on_load"); idx >= 0 {
		if _, err := d.callGuarded(mp, idx, nil); err != nil {
			log.Printf("plugin: %s on_load failed: %v", p.Meta.Name, err)
			mp.recordFailure(d.maxFailures)
		}
	}
	return nil
}

// Unload runs on_unload (if present) for every plugin and clears the
// registry.
func (d *Dispatcher) Unload() {
	for _, mp := range d.plugins {
		if idx := mp.vm.FunctionIndex("on_unload"); idx >= 0 {
			if _, err := d.callGuarded(mp, idx, nil); err != nil {
				log.Printf("plugin: %s on_unload failed: %v", mp.plugin.Meta.Name, err)
			}
		}
	}
	d.plugins = nil
}

// EnabledCount returns how many registered plugins have not been
// auto-disabled.
func (d *Dispatcher) EnabledCount() int {
	n := 0
	for _, mp := range d.plugins {
		if mp.enabled {
			n++
		}
	}
	return n
}

// RunOutput runs the on_output chain over data, in registration order.
// Failures never drop data: on error the running buffer is left
// untouched and the chain proceeds to the next plugin.
func (d *Dispatcher) RunOutput(data []byte) []byte {
	return d.runByteChain("on_output", data)
}

// RunInput is symmetric with RunOutput, applied to bytes bound for the
// pane's domain.
func (d *Dispatcher) RunInput(data []byte) []byte {
	return d.runByteChain("on_input", data)
}

func (d *Dispatcher) runByteChain(hookName string, data []byte) []byte {
	for _, mp := range d.plugins {
		if !mp.enabled {
			continue
		}
		idx := mp.vm.FunctionIndex(hookName)
		if idx < 0 {
			continue
		}
		result, err := d.callGuarded(mp, idx, []Value{StringValue(string(data))})
		if err != nil {
			log.Printf("plugin: %s %s failed: %v", mp.plugin.Meta.Name, hookName, err)
			mp.recordFailure(d.maxFailures)
			continue
		}
		mp.recordSuccess()

		switch action, newData := interpretResult(result); action {
		case ActionStop:
			return data
		case ActionModify:
			data = newData
		case ActionContinue:
			// unchanged
		}
	}
	return data
}

// DispatchCommand fans a CommandSelected event out to every enabled
// plugin's on_command hook, satisfying ipc.CommandDispatcher so the
// server can forward CommandSelected messages without importing plugin
// itself. clientID is passed through so a plugin can address its
// response at a specific connection via future host effects.
func (d *Dispatcher) DispatchCommand(clientID, commandID string) {
	for _, mp := range d.plugins {
		if !mp.enabled {
			continue
		}
		idx := mp.vm.FunctionIndex("on_command")
		if idx < 0 {
			continue
		}
		_, err := d.callGuarded(mp, idx, []Value{StringValue(clientID), StringValue(commandID)})
		if err != nil {
			log.Printf("plugin: %s on_command failed: %v", mp.plugin.Meta.Name, err)
			mp.recordFailure(d.maxFailures)
			continue
		}
		mp.recordSuccess()
	}
}

// RunResize fans a resize event out to every enabled plugin's on_resize
// hook. Results other than Continue are only logged (spec.md §4.7).
func (d *Dispatcher) RunResize(cols, rows int) {
	for _, mp := range d.plugins {
		if !mp.enabled {
			continue
		}
		idx := mp.vm.FunctionIndex("on_resize")
		if idx < 0 {
			continue
		}
		result, err := d.callGuarded(mp, idx, []Value{IntValue(int64(cols)), IntValue(int64(rows))})
		if err != nil {
			log.Printf("plugin: %s on_resize failed: %v", mp.plugin.Meta.Name, err)
			mp.recordFailure(d.maxFailures)
			continue
		}
		mp.recordSuccess()
		if action, _ := interpretResult(result); action != ActionContinue {
			log.Printf("plugin: %s on_resize returned %v (logged, resize always proceeds)", mp.plugin.Meta.Name, action)
		}
	}
}

func interpretResult(v Value) (Action, []byte) {
	switch v.Kind {
	case KindString:
		return ActionModify, []byte(v.S)
	case KindBool:
		if v.B {
			return ActionStop, nil
		}
		return ActionContinue, nil
	default:
		return ActionContinue, nil
	}
}

// callGuarded runs fn on its own goroutine with a wall-clock timeout,
// converting a panic into an error so it never crosses the dispatcher
// boundary (spec.md §4.7: "a hook that exceeds the timeout, panics, or
// returns an error counts as a failure").
func (d *Dispatcher) callGuarded(mp *managedPlugin, fnIdx int, args []Value) (result Value, err error) {
	type outcome struct {
		v   Value
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		// A fresh VM per call, not mp.vm, so a hook that times out and
		// keeps running in the background (in-flight hooks are never
		// cancelled, only raced against the clock) can't mutate state a
		// concurrent dispatch of the same plugin is also touching.
		callVM, err := New(mp.plugin.Module, d.ffi, d.sandbox)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		v, err := callVM.RunFunction(fnIdx, args)
		done <- outcome{v: v, err: err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-time.After(d.hookTimeout):
		return Value{}, fmt.Errorf("hook timed out after %s", d.hookTimeout)
	}
}

func (mp *managedPlugin) recordFailure(maxFailures int) {
	mp.failureCount++
	if mp.failureCount >= maxFailures {
		mp.enabled = false
	}
}

func (mp *managedPlugin) recordSuccess() {
	mp.failureCount = 0
}

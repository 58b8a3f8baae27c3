// Package pane couples one TerminalState with one domain-backed I/O
// channel and drives the read loop that feeds the VTE parser
// (spec.md §4.3).
package pane

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"scarabd/internal/domain"
	"scarabd/internal/term"
	"scarabd/internal/vte"
)

// ID identifies a Pane within its owning Tab.
type ID uint64

const readBufSize = 64 * 1024

// State is the Pane's lifecycle state.
type State int32

const (
	StateRunning State = iota
	StateClosing
	StateClosed
)

// HookChain runs the plugin dispatch chain for one direction of traffic.
// It returns the (possibly modified) bytes to forward; a pane that has
// no dispatcher wired in just passes bytes through (see NopHookChain).
type HookChain interface {
	RunOutput(pane ID, data []byte) []byte
	RunInput(pane ID, data []byte) []byte
}

// NopHookChain forwards bytes unchanged; used when a daemon runs without
// any plugins loaded.
type NopHookChain struct{}

func (NopHookChain) RunOutput(ID, data []byte) []byte { return data }
func (NopHookChain) RunInput(ID, data []byte) []byte  { return data }

// OnExit is invoked once, from the read loop's own goroutine, after the
// domain handle reports EOF or a fatal read error. It lets the owning
// Tab reap the pane without the read loop blocking on a callback taking
// the Tab's lock while it still holds the pane's.
type OnExit func(id ID, err error)

// Pane owns one TerminalState, one domain Handle, and the goroutine that
// pumps bytes between them. It is the exclusive writer of its
// TerminalState; everything else (the publisher, IPC layer) only reads
// through State().
type Pane struct {
	ID ID

	handle domain.Handle
	hooks  HookChain
	parser *vte.Parser

	ts *term.TerminalState

	state   atomic.Int32
	onExit  OnExit
	closeMu sync.Mutex
}

// Config carries spawn-time parameters not already covered by
// domain.Config.
type Config struct {
	Domain             domain.Config
	Cols, Rows         int
	ScrollbackCapacity int
	Hooks              HookChain
	BlobStore          vte.ImageBlobStore
	OnExit             OnExit
}

// Spawn starts a new pane backed by dom, with a running child/channel
// and an owned read loop goroutine.
func Spawn(id ID, dom domain.Domain, cfg Config) (*Pane, error) {
	dcfg := cfg.Domain
	dcfg.Cols, dcfg.Rows = cfg.Cols, cfg.Rows

	handle, err := dom.Spawn(dcfg)
	if err != nil {
		return nil, fmt.Errorf("spawn pane %d: %w", id, err)
	}

	ts := term.New(cfg.Cols, cfg.Rows, cfg.ScrollbackCapacity)
	parser := vte.New(ts)
	if cfg.BlobStore != nil {
		parser.SetImageBlobStore(cfg.BlobStore)
	}

	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NopHookChain{}
	}

	p := &Pane{
		ID:     id,
		handle: handle,
		hooks:  hooks,
		parser: parser,
		ts:     ts,
		onExit: cfg.OnExit,
	}
	go p.readLoop()
	return p, nil
}

// State borrows the pane's TerminalState for reading (the publisher and
// IPC snapshot paths use this; the read loop is the only writer).
func (p *Pane) State() *term.TerminalState {
	return p.ts
}

// Write forwards bytes bound for the domain channel through the
// input-hook chain. Fails when the pane is closed.
func (p *Pane) Write(data []byte) error {
	if State(p.state.Load()) != StateRunning {
		return fmt.Errorf("write to pane %d: %w", p.ID, domain.ErrClosed)
	}
	data = p.hooks.RunInput(p.ID, data)
	if _, err := p.handle.Write(data); err != nil {
		return fmt.Errorf("write to pane %d: %w", p.ID, err)
	}
	return nil
}

// Resize updates the terminal grid and propagates to the domain.
func (p *Pane) Resize(cols, rows int) error {
	p.ts.Mu.Lock()
	p.ts.Resize(cols, rows)
	p.ts.Mu.Unlock()
	if err := p.handle.Resize(cols, rows); err != nil {
		return fmt.Errorf("resize pane %d: %w", p.ID, err)
	}
	return nil
}

// Close closes the domain handle and transitions to Closed. It does not
// wait for the child to exit or drain output still pending on the
// channel. Safe to call more than once.
func (p *Pane) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if State(p.state.Load()) == StateClosed {
		return nil
	}
	p.state.Store(int32(StateClosing))
	err := p.handle.Close()
	p.state.Store(int32(StateClosed))
	return err
}

// readLoop reads pane output, runs the output-hook chain, feeds the
// result to the VTE parser, and bumps the terminal sequence so the
// publisher knows to republish. Read errors other than EOF are logged;
// on EOF (or after a fatal error) the pane notifies its owner.
func (p *Pane) readLoop() {
	buf := make([]byte, readBufSize)
	var exitErr error
	for {
		n, err := p.handle.Read(buf)
		if n > 0 {
			data := p.hooks.RunOutput(p.ID, buf[:n])
			p.ts.Mu.Lock()
			p.parser.Process(data)
			p.ts.Mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("pane %d: read error: %v", p.ID, err)
			}
			exitErr = err
			break
		}
	}
	p.state.Store(int32(StateClosed))
	if p.onExit != nil {
		p.onExit(p.ID, exitErr)
	}
}

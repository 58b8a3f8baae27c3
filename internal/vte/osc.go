package vte

import (
	"strconv"
	"strings"
	"time"

	"scarabd/internal/term"
)

// dispatchOSC handles one complete OSC string captured in p.body (without
// its introducer or terminator). Unknown OSC codes are simply dropped —
// the string has already been consumed to its terminator either way.
func (p *Parser) dispatchOSC() {
	raw := string(p.body)
	code, rest, _ := strings.Cut(raw, ";")

	switch code {
	case "0", "2":
		p.ts.SetTitle(rest)
	case "8":
		p.dispatchHyperlink(rest)
	case "133":
		p.dispatchPromptMarker(rest)
	}
}

// dispatchHyperlink handles OSC 8 ";params;uri". An empty uri closes the
// currently active hyperlink.
func (p *Parser) dispatchHyperlink(rest string) {
	_, uri, found := strings.Cut(rest, ";")
	if !found {
		uri = rest
	}
	if uri == "" {
		p.ts.EndHyperlink()
		return
	}
	p.ts.StartHyperlink(uri)
}

// dispatchPromptMarker handles OSC 133;<kind>[;extra...] (FinalTerm shell
// integration). A/B/C/D map to PromptStart/CommandStart/OutputStart/
// CommandFinished; D optionally carries an exit code as its first extra
// field.
func (p *Parser) dispatchPromptMarker(rest string) {
	fields := strings.Split(rest, ";")
	if len(fields) == 0 || fields[0] == "" {
		return
	}
	var kind term.MarkerType
	switch fields[0] {
	case "A":
		kind = term.PromptStart
	case "B":
		kind = term.CommandStart
	case "C":
		kind = term.OutputStart
	case "D":
		kind = term.CommandFinished
	default:
		return
	}

	marker := term.PromptMarker{
		Type:            kind,
		Line:            p.ts.CurrentAbsoluteLine(),
		TimestampMicros: time.Now().UnixMicro(),
	}
	if kind == term.CommandFinished && len(fields) > 1 {
		if code, err := strconv.Atoi(fields[1]); err == nil {
			marker.ExitCode = &code
		}
	}
	p.ts.AppendMarker(marker)
}

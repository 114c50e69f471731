// Package method defines the compiled form of a measurement method: the
// program tree produced by the parser, plus the run-time binding lookup
// that resolves symbolic parameters to operator-supplied values.
//
// Programs are immutable after parse. They can be described and executed
// any number of times against different bindings without re-parsing.
package method

import (
	"strconv"
	"strings"
)

// Symbol is an identifier referenced by a program. It carries no value
// until resolved through a Bindings lookup at describe/run time. The same
// name may recur in different blocks; every occurrence resolves through
// the same lookup (no lexical scoping).
type Symbol string

// Program is an ordered sequence of repeat blocks. Blocks execute
// sequentially in source order.
type Program struct {
	Blocks []RepeatBlock
}

// Empty reports whether the program contains no repeat blocks. A tolerant
// parse of malformed source degrades to an empty program rather than an
// error, so callers that want a diagnostic check this.
func (p *Program) Empty() bool {
	return len(p.Blocks) == 0
}

// RepeatBlock repeats its for-loops a symbolic number of times. Repeats is
// resolved to an integer cycle count at run time.
type RepeatBlock struct {
	Repeats  Symbol
	ForLoops []ForLoop
}

// ForLoop sweeps the controlled quantity over an inclusive arithmetic
// range. All three endpoints are symbolic; the sign of the increment is
// chosen at run time to travel from Start toward End, using the magnitude
// of the bound Step.
type ForLoop struct {
	Start    Symbol
	End      Symbol
	Step     Symbol
	Commands []Command
}

// Command is one entry of a for-loop body. Exactly three kinds exist:
// MeanCommand, DelayCommand and OutputCommand. Only the last MEAN and the
// last DELAY in a loop take effect per pass; earlier ones are silently
// overridden. That quirk is part of the language, not a defect.
type Command interface {
	command()
}

// MeanCommand averages this many consecutive readings per sweep value.
type MeanCommand struct {
	Repetitions Symbol
}

// DelayCommand sets the settling budget per sweep value, in seconds.
type DelayCommand struct {
	Duration Symbol
}

// OutputCommand declares named result channels and their source variables.
// Pairs keep source order. Values that are not bound symbols are display
// tokens, never resolved numerically.
type OutputCommand struct {
	Outputs []OutputPair
}

// OutputPair is one name=value entry of an OUTPUT command.
type OutputPair struct {
	Name  string
	Value string
}

func (MeanCommand) command()   {}
func (DelayCommand) command()  {}
func (OutputCommand) command() {}

// Bindings resolves symbols to operator-supplied values. An absent entry
// is never an error; callers fall back to a built-in default or to the raw
// symbol name for display.
type Bindings interface {
	Get(sym Symbol) (string, bool)
}

// MapBindings is the plain map implementation of Bindings.
type MapBindings map[Symbol]string

// Get returns the bound text for sym, if any.
func (m MapBindings) Get(sym Symbol) (string, bool) {
	v, ok := m[sym]
	return v, ok
}

// DisplayValue resolves a symbol for human-readable output. A bound value
// containing '.' renders as a float, anything else as an integer; text
// that parses as neither is shown verbatim. Unbound symbols fall back to
// the raw symbol name.
func DisplayValue(b Bindings, sym Symbol) string {
	raw, ok := lookup(b, sym)
	if !ok {
		return string(sym)
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return raw
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return strconv.Itoa(n)
	}
	return raw
}

// IntValue resolves a symbol to an integer, falling back to def when the
// symbol is unbound or its text does not parse.
func IntValue(b Bindings, sym Symbol, def int) int {
	raw, ok := lookup(b, sym)
	if !ok {
		return def
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return n
	}
	return def
}

// FloatValue resolves a symbol to a float, falling back to def when the
// symbol is unbound or its text does not parse.
func FloatValue(b Bindings, sym Symbol, def float64) float64 {
	raw, ok := lookup(b, sym)
	if !ok {
		return def
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return f
	}
	return def
}

func lookup(b Bindings, sym Symbol) (string, bool) {
	if b == nil {
		return "", false
	}
	v, ok := b.Get(sym)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

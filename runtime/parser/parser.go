// Package parser compiles method source text into a method.Program.
//
// The grammar is small and the scanner is deliberately tolerant: unmatched
// REPEAT or FOR_RANGEV constructs and unrecognized commands are dropped
// silently, never reported. Malformed source degrades to a smaller (or
// empty) program; Parse has no error return. Callers that want a
// diagnostic check Program.Empty after parsing.
package parser

import (
	"strings"
	"unicode"

	"github.com/voltsweep/voltsweep/core/invariant"
	"github.com/voltsweep/voltsweep/core/method"
)

const (
	repeatKeyword = "REPEAT("
	forKeyword    = "FOR_RANGEV("
)

// Parse compiles source text into a program. Whitespace is insignificant
// and stripped up front. Parsing is purely structural: symbols are not
// checked against any binding set here.
func Parse(source string) *method.Program {
	s := stripSpace(source)

	prog := &method.Program{}
	pos := 0
	for pos < len(s) {
		start := strings.Index(s[pos:], repeatKeyword)
		if start < 0 {
			break
		}
		start += pos

		block, next, ok := scanRepeat(s, start)
		if ok {
			prog.Blocks = append(prog.Blocks, block)
			pos = next
		} else {
			// Not a well-formed block; skip the keyword and keep scanning.
			pos = start + len(repeatKeyword)
		}
		invariant.Invariant(pos > start, "scan position must advance")
	}
	return prog
}

// scanRepeat scans one REPEAT(<ident>){<body>} block starting at the
// keyword. The body runs to the first '}' that is followed by ':' or
// end-of-text; that is how sequential blocks are delimited from one
// another, and it is what lets inner for-loop braces live in the body.
func scanRepeat(s string, start int) (method.RepeatBlock, int, bool) {
	pos := start + len(repeatKeyword)

	ident, pos, ok := scanIdent(s, pos)
	if !ok || pos >= len(s) || s[pos] != ')' {
		return method.RepeatBlock{}, 0, false
	}
	pos++
	if pos >= len(s) || s[pos] != '{' {
		return method.RepeatBlock{}, 0, false
	}
	pos++

	bodyStart := pos
	for i := pos; i < len(s); i++ {
		if s[i] != '}' {
			continue
		}
		if i+1 == len(s) || s[i+1] == ':' {
			block := method.RepeatBlock{
				Repeats:  method.Symbol(ident),
				ForLoops: scanForLoops(s[bodyStart:i]),
			}
			return block, i + 1, true
		}
	}
	return method.RepeatBlock{}, 0, false
}

// scanForLoops extracts every FOR_RANGEV(a,b,c){...} occurrence from a
// repeat body. Loop bodies run to the first '}'; commands contain no
// braces, so that is always the loop's own closer.
func scanForLoops(body string) []method.ForLoop {
	var loops []method.ForLoop

	pos := 0
	for pos < len(body) {
		start := strings.Index(body[pos:], forKeyword)
		if start < 0 {
			break
		}
		start += pos

		loop, next, ok := scanForLoop(body, start)
		if ok {
			loops = append(loops, loop)
			pos = next
		} else {
			pos = start + len(forKeyword)
		}
	}
	return loops
}

func scanForLoop(s string, start int) (method.ForLoop, int, bool) {
	pos := start + len(forKeyword)

	// Range endpoints are any text up to the next delimiter, not just
	// identifier characters; empty endpoints fail the candidate.
	a, pos, ok := scanUntil(s, pos, ',')
	if !ok {
		return method.ForLoop{}, 0, false
	}
	b, pos, ok := scanUntil(s, pos, ',')
	if !ok {
		return method.ForLoop{}, 0, false
	}
	c, pos, ok := scanUntil(s, pos, ')')
	if !ok {
		return method.ForLoop{}, 0, false
	}
	if pos >= len(s) || s[pos] != '{' {
		return method.ForLoop{}, 0, false
	}
	pos++

	end := strings.IndexByte(s[pos:], '}')
	if end < 0 {
		return method.ForLoop{}, 0, false
	}
	loop := method.ForLoop{
		Start:    method.Symbol(a),
		End:      method.Symbol(b),
		Step:     method.Symbol(c),
		Commands: scanCommands(s[pos : pos+end]),
	}
	return loop, pos + end + 1, true
}

// scanCommands splits a loop body on top-level commas and dispatches each
// segment as <NAME>(<args>). Command names are case-insensitive; unknown
// names and segments that do not match the shape are dropped.
func scanCommands(body string) []method.Command {
	var commands []method.Command
	for _, raw := range SplitCommands(body) {
		name, args, ok := matchCall(raw)
		if !ok {
			continue
		}
		switch strings.ToUpper(name) {
		case "MEAN":
			commands = append(commands, method.MeanCommand{Repetitions: method.Symbol(args)})
		case "DELAY":
			commands = append(commands, method.DelayCommand{Duration: method.Symbol(args)})
		case "OUTPUT":
			commands = append(commands, method.OutputCommand{Outputs: scanOutputs(args)})
		}
	}
	return commands
}

// scanOutputs splits OUTPUT arguments on top-level commas, then each pair
// on the first '='. Pairs without '=' are dropped.
func scanOutputs(args string) []method.OutputPair {
	var pairs []method.OutputPair
	for _, piece := range SplitCommands(args) {
		eq := strings.IndexByte(piece, '=')
		if eq < 0 {
			continue
		}
		pairs = append(pairs, method.OutputPair{
			Name:  piece[:eq],
			Value: piece[eq+1:],
		})
	}
	return pairs
}

// matchCall matches a leading <word>(<args>) shape. The argument text runs
// to the last ')' in the segment so nested calls survive; trailing text
// after that paren is ignored.
func matchCall(s string) (name, args string, ok bool) {
	i := 0
	for i < len(s) && isWordByte(s[i]) {
		i++
	}
	if i == 0 || i >= len(s) || s[i] != '(' {
		return "", "", false
	}
	end := strings.LastIndexByte(s, ')')
	if end <= i {
		return "", "", false
	}
	return s[:i], s[i+1 : end], true
}

// scanIdent consumes a run of word characters ([A-Za-z0-9_]).
func scanIdent(s string, pos int) (string, int, bool) {
	start := pos
	for pos < len(s) && isWordByte(s[pos]) {
		pos++
	}
	if pos == start {
		return "", 0, false
	}
	return s[start:pos], pos, true
}

// scanUntil consumes text up to the given delimiter and steps past it.
// Fails on an empty span or a missing delimiter.
func scanUntil(s string, pos int, delim byte) (string, int, bool) {
	end := strings.IndexByte(s[pos:], delim)
	if end <= 0 {
		return "", 0, false
	}
	return s[pos : pos+end], pos + end + 1, true
}

func isWordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

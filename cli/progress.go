package cli

import (
	"fmt"
	"io"
	"strings"
)

// progressBar renders a single-line terminal progress bar, redrawn in
// place with a carriage return. Safe for the engine's synchronous
// progress callback.
type progressBar struct {
	out      io.Writer
	width    int
	useColor bool
	done     bool
}

func newProgressBar(out io.Writer, useColor bool) *progressBar {
	return &progressBar{out: out, width: 30, useColor: useColor}
}

// Update redraws the bar for the given fraction in [0, 1].
func (p *progressBar) Update(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	filled := int(fraction * float64(p.width))
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", p.width-filled)
	fmt.Fprintf(p.out, "\r[%s] %3.0f%%", colorize(bar, colorGreen, p.useColor), fraction*100)
}

// Finish terminates the bar line. Idempotent.
func (p *progressBar) Finish() {
	if p.done {
		return
	}
	p.done = true
	fmt.Fprintln(p.out)
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// progress shows indexing progress as a spinner with a percentage. When
// disabled only the final line is printed.
type progress struct {
	out     io.Writer
	sp      *spinner.Spinner
	percent int64
}

func newProgress(out io.Writer, enabled bool) *progress {
	p := &progress{out: out, percent: -1}
	if enabled {
		p.sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
		p.sp.Prefix = "  "
		p.sp.Suffix = " Indexing, please wait..."
		p.sp.Start()
	}
	return p
}

// update is an ffms.ProgressFunc.
func (p *progress) update(current, total int64) bool {
	if total <= 0 {
		return true
	}
	pct := current * 100 / total
	if pct == p.percent {
		return true
	}
	p.percent = pct
	if p.sp != nil {
		p.sp.Lock()
		p.sp.Suffix = fmt.Sprintf(" Indexing, please wait... %d%%", pct)
		p.sp.Unlock()
	}
	return true
}

func (p *progress) stop() {
	if p.sp != nil {
		p.sp.Stop()
	}
}

func (p *progress) done(msg string) {
	p.stop()
	fmt.Fprintf(p.out, "  %s %s\n", color.GreenString("✓"), msg)
}

func (p *progress) fail(msg string) {
	p.stop()
	fmt.Fprintf(p.out, "  %s %s\n", color.RedString("✗"), msg)
}

package progress

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore/internal/termcolor"
	"github.com/pterm/pterm"
)

// RenderSpinner attaches a pterm spinner to p's status line, mirroring the
// teacher's braille Spinner but driven by Progress.SetStatus instead of a
// fixed message. It is silent when stderr is not a terminal (piped output,
// CI), same as the teacher's guard. The returned stop func must be called
// once the tracked operation finishes; ok indicates the spinner resolves to
// success (true) or failure (false) styling.
func RenderSpinner(p *Progress, initial string) (stop func(ok bool)) {
	if !termcolor.IsTerminal(os.Stderr.Fd()) {
		return func(bool) { p.Finish() }
	}

	spinner, err := pterm.DefaultSpinner.WithWriter(os.Stderr).Start(initial)
	if err != nil {
		return func(bool) { p.Finish() }
	}

	p.Watch(func(p *Progress) {
		if status := p.Status(); status != "" {
			spinner.UpdateText(status)
		}
	})

	return func(ok bool) {
		p.Finish()
		if ok {
			spinner.Success()
		} else {
			spinner.Fail()
		}
	}
}

// RenderByteBar attaches a pterm progress bar tracking two Uint64 counters
// on p: doneKey (bytes transferred so far) and totalKey (expected total).
// Like RenderSpinner it is silent outside a terminal.
func RenderByteBar(p *Progress, title, doneKey, totalKey string) (stop func()) {
	if !termcolor.IsTerminal(os.Stderr.Fd()) {
		return func() { p.Finish() }
	}

	total := int(p.Uint64(totalKey))
	bar, err := pterm.DefaultProgressbar.WithWriter(os.Stderr).WithTitle(title).WithTotal(total).Start()
	if err != nil {
		return func() { p.Finish() }
	}

	last := 0
	p.Watch(func(p *Progress) {
		if newTotal := int(p.Uint64(totalKey)); newTotal != bar.Total && newTotal > 0 {
			bar.Total = newTotal
		}
		done := int(p.Uint64(doneKey))
		if delta := done - last; delta > 0 {
			bar.Add(delta)
			last = done
		}
		if status := p.Status(); status != "" {
			bar.UpdateTitle(status)
		}
	})

	return func() {
		p.Finish()
		if bar.Current < bar.Total {
			bar.Add(bar.Total - bar.Current)
		}
		if _, err := bar.Stop(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

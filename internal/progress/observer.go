// Package progress renders ingestion progress on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// Observer draws a batch progress bar and colored status lines. It
// implements service.ProgressObserver.
type Observer struct {
	out io.Writer
	bar *progressbar.ProgressBar

	info  *color.Color
	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	quiet bool
}

// NewObserver writes to out, or stderr when out is nil. With quiet set only
// the final summary is printed.
func NewObserver(out io.Writer, quiet bool) *Observer {
	if out == nil {
		out = os.Stderr
	}
	return &Observer{
		out:   out,
		info:  color.New(color.FgBlue),
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
		quiet: quiet,
	}
}

func (o *Observer) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetDescription(color.BlueString("Upserting batches")),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (o *Observer) OnChunked(category string, chunks int) {
	if o.quiet {
		return
	}
	o.info.Fprintf(o.out, "%s: %d chunks\n", category, chunks)
}

func (o *Observer) OnBatchDone(done, total int, failure *domain.BatchFailure) {
	if o.quiet {
		return
	}
	if o.bar == nil {
		o.bar = o.newBar(total)
	}
	if failure != nil {
		o.bar.Describe(color.RedString("batch %d failed (%s)", failure.Index+1, failure.Code))
	}
	_ = o.bar.Set(done)
}

func (o *Observer) OnRunFinished(report *domain.UpsertReport) {
	if o.bar != nil {
		_ = o.bar.Finish()
		fmt.Fprintln(o.out)
		o.bar = nil
	}

	c := o.ok
	switch report.Status() {
	case domain.RunStatusPartial, domain.RunStatusCancelled:
		c = o.warn
	case domain.RunStatusFailed:
		c = o.fail
	}
	c.Fprintf(o.out, "✓ %s\n", report.Summary())
}

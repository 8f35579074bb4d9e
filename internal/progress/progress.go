// Package progress generalizes ivoronin-dupedog's enabled/disabled
// progress-bar wrapper into the progress-callback contract long-running
// jobs report through (spec.md §5 "driven by a progress callback").
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Reporter receives fractional progress in [0,1] plus a human-readable
// status message. SyncEngine, Analyser, and JobManager all report through
// this interface rather than a concrete progress bar, so a job worker can
// swap in a no-op or a Store-backed reporter without either package
// depending on the other.
type Reporter interface {
	Report(fraction float64, message string)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(fraction float64, message string)

// Report implements Reporter.
func (f ReporterFunc) Report(fraction float64, message string) { f(fraction, message) }

// Null is a Reporter that discards every update.
var Null Reporter = ReporterFunc(func(float64, string) {})

const updateInterval = 50 * time.Millisecond

// Bar is a terminal-facing Reporter backed by schollz/progressbar. All
// methods are no-ops when disabled, mirroring the teacher's enabled-flag
// wrapper.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar creates a CLI progress bar over a [0,1] fraction. If enabled is
// false, the returned Bar's Report calls are no-ops.
func NewBar(enabled bool) *Bar {
	if !enabled {
		return &Bar{}
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
	}
	return &Bar{bar: progressbar.NewOptions64(100, opts...)}
}

// Report implements Reporter, scaling fraction to the bar's 0-100 range.
func (b *Bar) Report(fraction float64, message string) {
	if b.bar == nil {
		return
	}
	b.bar.Describe(message)
	_ = b.bar.Set64(int64(fraction * 100))
}

// Finish completes the bar and prints a final message.
func (b *Bar) Finish(message string) {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	fmt.Fprintln(os.Stderr, "done: "+message)
}

// FormatBytes renders n as a human-readable byte count (e.g. "4.2 MB"),
// used in progress messages and CLI summaries that report file sizes
// pulled from the upstream store.
func FormatBytes(n int64) string {
	return humanize.Bytes(uint64(n))
}

// Package progress renders a completion progress bar for batch
// execution. It is a display-only layer: it observes completions and
// never influences ordering or error semantics.
package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter tracks completed requests. A nil Reporter is a valid no-op,
// so callers can thread it through unconditionally.
type Reporter struct {
	bar *progressbar.ProgressBar
}

// New creates a reporter for total tasks writing to stderr.
// Returns nil when enabled is false.
func New(total int, enabled bool, description string) *Reporter {
	if !enabled {
		return nil
	}
	return NewWithWriter(total, description, os.Stderr)
}

// NewWithWriter creates a reporter writing to w. Used by tests.
func NewWithWriter(total int, description string, w io.Writer) *Reporter {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
	return &Reporter{bar: bar}
}

// Increment records one completed request.
func (r *Reporter) Increment() {
	if r == nil || r.bar == nil {
		return
	}
	_ = r.bar.Add(1)
}

// Finish completes and clears the bar.
func (r *Reporter) Finish() {
	if r == nil || r.bar == nil {
		return
	}
	_ = r.bar.Finish()
}

// Package progress renders a console progress indicator for the sender.
// It is decoupled from the transfer loop: the state machine calls Reporter
// after every acknowledged chunk and Reporter owns the terminal/formatting
// concern.
package progress

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Reporter renders a single-line progress bar to stderr, gated behind the
// caller's own verbose flag: a Reporter is only constructed when -v is
// set.
type Reporter struct {
	label       string
	totalChunks uint64
	totalBytes  uint64
	startTime   time.Time
	lastRender  time.Time
}

// NewReporter creates a Reporter for a transfer of totalChunks chunks
// totaling totalBytes bytes.
func NewReporter(label string, totalChunks, totalBytes uint64) *Reporter {
	return &Reporter{
		label:       label,
		totalChunks: totalChunks,
		totalBytes:  totalBytes,
		startTime:   time.Now(),
	}
}

// Update is the callback the sender state machine invokes after every
// acknowledged chunk. It throttles its own rendering to at most once every
// 100ms so a fast local transfer doesn't spend more time drawing the bar
// than sending chunks.
func (r *Reporter) Update(sentChunks, sentBytes uint64) {
	now := time.Now()
	final := sentChunks >= r.totalChunks
	if !final && now.Sub(r.lastRender) < 100*time.Millisecond {
		return
	}
	r.lastRender = now
	r.render(sentChunks, sentBytes, final)
}

// Done prints the final, newline-terminated progress line. Safe to call
// even if Update already rendered the 100%-complete line.
func (r *Reporter) Done(sentChunks, sentBytes uint64) {
	r.render(sentChunks, sentBytes, true)
}

func (r *Reporter) render(sentChunks, sentBytes uint64, final bool) {
	const barWidth = 30
	var pct float64
	if r.totalChunks > 0 {
		pct = float64(sentChunks) / float64(r.totalChunks)
	}
	if pct > 1.0 {
		pct = 1.0
	}
	filled := int(pct * float64(barWidth))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)

	elapsed := time.Since(r.startTime)
	var speed float64
	if s := elapsed.Seconds(); s > 0.1 {
		speed = float64(sentBytes) / s
	}

	line := fmt.Sprintf("\r[%s] %s %5.1f%%  %s/%s  %s/s  %d/%d chunks",
		r.label, bar, pct*100,
		formatBytes(sentBytes), formatBytes(r.totalBytes),
		formatBytes(uint64(speed)), sentChunks, r.totalChunks,
	)
	if final {
		fmt.Fprintf(os.Stderr, "%s\n", line)
	} else {
		fmt.Fprint(os.Stderr, line)
	}
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.1fGB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

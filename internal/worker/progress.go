package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Progress renders a CLI progress bar across a fixed number of named steps
// (e.g. the twelve pipeline stages), each independently reporting 0..100.
type Progress struct {
	startTime time.Time
	output    io.Writer
	total     int
	current   int
	label     string
	percent   float64
	mu        sync.RWMutex
	enabled   bool
}

// NewProgress creates a tracker for `total` sequential steps.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		output:    os.Stderr,
		enabled:   enabled,
	}
}

// StartStep marks the beginning of step `index` (0-based) named `label`.
func (p *Progress) StartStep(index int, label string) {
	p.mu.Lock()
	p.current = index
	p.label = label
	p.percent = 0
	p.mu.Unlock()
	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for passing straight into a
// stage run, updating this step's percentage as it ticks.
func (p *Progress) Callback() func(percent int) {
	return func(percent int) {
		p.mu.Lock()
		p.percent = float64(percent)
		p.mu.Unlock()
		if p.enabled {
			p.Print()
		}
	}
}

// Print displays current progress to output.
func (p *Progress) Print() {
	p.mu.RLock()
	current, total, label, percent, startTime := p.current, p.total, p.label, p.percent, p.startTime
	p.mu.RUnlock()

	elapsed := time.Since(startTime)

	barWidth := 30
	overall := (float64(current) + percent/100) / float64(total)
	filled := int(overall * float64(barWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r[%s] stage %d/%d: %-12s %3.0f%% (%s elapsed)",
		bar, current+1, total, label, percent, formatDuration(elapsed))
	line += "          "
	fmt.Fprint(p.output, line)
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}

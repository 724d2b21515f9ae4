package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how far a backfill has progressed toward its target.
type ProgressTracker struct {
	writer    io.Writer
	target    int
	unit      string
	current   int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker writing to writer, typically os.Stderr.
func NewProgressTracker(writer io.Writer, target int) *ProgressTracker {
	return &ProgressTracker{
		writer: writer,
		target: target,
		unit:   "new papers",
	}
}

// WithUnit changes the noun printed after the counts.
func (p *ProgressTracker) WithUnit(unit string) *ProgressTracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unit = unit
	return p
}

// Start begins tracking from current, which is non-zero for a resumed job.
func (p *ProgressTracker) Start(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = min(current, p.target)
	p.report()
}

// Update records current progress and reports it.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(current, p.target)
	p.report()
}

// Finish prints the final progress line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
	p.started = false
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	percentage := 0.0
	if p.target > 0 {
		percentage = float64(p.current) / float64(p.target) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d %s (%.1f%%) - %s elapsed",
		p.current, p.target, p.unit, percentage, time.Since(p.startTime).Round(time.Second))
}

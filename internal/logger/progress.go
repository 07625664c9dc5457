package logger

import (
	"time"

	"go.uber.org/zap"
)

// ProgressInterval is the minimum wall time between two progress lines.
const ProgressInterval = 5 * time.Second

// Progress throttles status output of long-running loops.
type Progress struct {
	name  string
	last  time.Time
	now   func() time.Time
	start time.Time
}

// NewProgress starts a throttled progress reporter.
func NewProgress(name string) *Progress {
	p := &Progress{name: name, now: time.Now}
	p.start = p.now()
	p.last = p.start
	return p
}

// Due reports whether enough time passed since the last report. Callers
// check it before computing the percentage or message.
func (p *Progress) Due() bool {
	return p.now().Sub(p.last) >= ProgressInterval
}

// Report logs the status when due and returns whether it did.
func (p *Progress) Report(status string, percent float64) bool {
	if !p.Due() {
		return false
	}
	p.last = p.now()
	Log.Info(p.name,
		zap.String("status", status),
		zap.Float64("percent", percent),
		zap.Duration("elapsed", p.last.Sub(p.start)),
	)
	return true
}

// Package profiler - Per-stage timing of the frame pipeline with periodic
// summaries through the logger.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// Observer receives every recorded stage duration, e.g. to feed a histogram.
type Observer func(stage string, elapsed time.Duration)

// Options configures the profiler.
type Options struct {
	// ReportInterval is how often a summary is logged (default: 10s). Reports
	// are only emitted between Start and Stop.
	ReportInterval time.Duration
	// MaxSamples is the number of most recent durations kept per stage
	// (default: 600).
	MaxSamples int
	// Log receives the summaries.
	Log logs.Log
	// Observer, if set, is called for every recorded duration.
	Observer Observer
}

// StageStats summarises the retained samples of one stage.
type StageStats struct {
	Count   int64         `json:"count"`
	Samples int           `json:"samples"`
	Mean    time.Duration `json:"mean"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
}

// timeTracker keeps a bounded window of durations.
type timeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Profiler times named pipeline stages. It is safe for concurrent use.
type Profiler struct {
	reportInterval time.Duration
	maxSamples     int
	log            logs.Log
	observer       Observer

	mu        sync.Mutex
	stages    map[string]*timeTracker
	startTime time.Time
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a profiler.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//
// Returns:
//   - *Profiler: A profiler with no samples.
func New(opts Options) *Profiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}

	return &Profiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		log:            opts.Log,
		observer:       opts.Observer,
		stages:         make(map[string]*timeTracker),
		startTime:      time.Now(),
	}
}

// Start begins logging periodic reports. Calling it twice is a no-op.
func (p *Profiler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.log == nil {
		return
	}
	p.running = true
	p.startTime = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (p *Profiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// StartStage begins timing a stage.
//
// Arguments:
//   - name: The stage name.
//
// Returns:
//   - func(): Call when the stage completes.
func (p *Profiler) StartStage(name string) func() {
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds one duration for a stage.
func (p *Profiler) Record(name string, elapsed time.Duration) {
	p.mu.Lock()
	tracker, ok := p.stages[name]
	if !ok {
		tracker = &timeTracker{
			durations: make([]time.Duration, 0, p.maxSamples),
			minTime:   elapsed,
			maxTime:   elapsed,
		}
		p.stages[name] = tracker
	}

	tracker.durations = append(tracker.durations, elapsed)
	tracker.totalTime += elapsed
	if len(tracker.durations) > p.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
	tracker.minTime = min(tracker.minTime, elapsed)
	tracker.maxTime = max(tracker.maxTime, elapsed)
	p.mu.Unlock()

	if p.observer != nil {
		p.observer(name, elapsed)
	}
}

// Stats returns a snapshot of every stage.
func (p *Profiler) Stats() map[string]StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make(map[string]StageStats, len(p.stages))
	for name, tracker := range p.stages {
		s := StageStats{
			Count:   tracker.count,
			Samples: len(tracker.durations),
			Min:     tracker.minTime,
			Max:     tracker.maxTime,
		}
		if s.Samples > 0 {
			s.Mean = tracker.totalTime / time.Duration(s.Samples)
		}
		stats[name] = s
	}
	return stats
}

// Report logs one line per stage and the heap usage.
func (p *Profiler) Report() {
	if p.log == nil {
		return
	}

	stats := p.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.Lock()
	uptime := time.Since(p.startTime)
	p.mu.Unlock()

	p.log.Infof("Profiler: uptime %v, heap %s, %d GC cycles", uptime.Truncate(time.Second), formatBytes(mem.HeapAlloc), mem.NumGC)
	for _, name := range names {
		s := stats[name]
		p.log.Infof("  %s: avg=%v, min=%v, max=%v, count=%d",
			name, s.Mean.Truncate(time.Microsecond), s.Min.Truncate(time.Microsecond),
			s.Max.Truncate(time.Microsecond), s.Count)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

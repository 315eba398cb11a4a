// Package processor runs the single consumer that drives frames from the
// hand-off queue through extraction, statistics, detection and alerting.
package processor

import (
	"NetSentinel/internal/model"
	"NetSentinel/internal/queue"
	"NetSentinel/internal/telemetry"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MetricsSink accumulates statistics from decoded records.
type MetricsSink interface {
	Update(rec *model.FeatureRecord)
}

// Analyzer turns a record into findings.
type Analyzer interface {
	Analyze(rec *model.FeatureRecord) []model.Finding
}

// FindingSink ingests findings.
type FindingSink interface {
	Process(findings []model.Finding)
}

// Processor is the processing loop. Units are handled strictly one at a time
// in queue order.
type Processor struct {
	queue       *queue.BoundedQueue[model.RawFrame]
	extractor   model.Extractor
	metrics     MetricsSink
	analyzer    Analyzer
	findings    FindingSink
	pollTimeout time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}

	stopRequested atomic.Bool
	alive         atomic.Bool
	processed     atomic.Uint64
	failed        atomic.Uint64
}

// New creates an idle Processor.
func New(q *queue.BoundedQueue[model.RawFrame], extractor model.Extractor, metrics MetricsSink,
	analyzer Analyzer, findings FindingSink, pollTimeout time.Duration, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &Processor{
		queue:       q,
		extractor:   extractor,
		metrics:     metrics,
		analyzer:    analyzer,
		findings:    findings,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start launches the worker goroutine. Calling it while running logs a
// warning and does nothing.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Warn("Processor already running")
		return
	}
	p.running = true
	p.stopRequested.Store(false)
	p.alive.Store(true)
	p.done = make(chan struct{})

	go p.run(p.done)
	p.logger.Info("Processor started", zap.Duration("poll_timeout", p.pollTimeout))
}

// Stop asks the worker to exit and waits until it has. Calling it while idle
// logs a warning and does nothing.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warn("Processor is not running")
		return
	}
	p.stopRequested.Store(true)
	<-p.done
	p.running = false
	p.logger.Info("Processor stopped",
		zap.Uint64("processed", p.processed.Load()),
		zap.Uint64("failed", p.failed.Load()))
}

// IsAlive reports whether the worker goroutine is running.
func (p *Processor) IsAlive() bool {
	return p.alive.Load()
}

// Processed returns the number of units that went through the whole pipeline.
func (p *Processor) Processed() uint64 {
	return p.processed.Load()
}

// Failed returns the number of units skipped because of an error.
func (p *Processor) Failed() uint64 {
	return p.failed.Load()
}

func (p *Processor) run(done chan struct{}) {
	defer close(done)
	defer p.alive.Store(false)

	for !p.stopRequested.Load() {
		frame, err := p.queue.Get(true, p.pollTimeout)
		if err != nil {
			// Timed out: loop around and re-check the stop flag.
			continue
		}
		p.handle(frame)
	}
}

// handle processes a single unit. Any failure is contained to this unit.
func (p *Processor) handle(frame model.RawFrame) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("Recovered panic while processing frame", zap.Any("panic", r))
		}
	}()

	rec, err := p.extractor.Extract(frame)
	if err != nil {
		p.failed.Add(1)
		telemetry.ExtractErrors.Inc()
		p.logger.Debug("Skipping frame", zap.Error(err))
		return
	}

	// 1. Statistics first, so rate-based detectors see this unit.
	p.metrics.Update(rec)

	// 2. Detection and alerting.
	if found := p.analyzer.Analyze(rec); len(found) > 0 {
		p.findings.Process(found)
	}

	p.processed.Add(1)
	telemetry.FramesProcessed.Inc()
}

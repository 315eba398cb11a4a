// Package probe acquires raw frames from live interfaces, capture files or
// NATS and hands them to the processing queue.
package probe

import (
	"NetSentinel/internal/model"
	"NetSentinel/internal/queue"
	"NetSentinel/internal/telemetry"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Source produces raw frames. Run blocks until ctx is cancelled or the source
// is exhausted, calling emit for every frame from a single goroutine.
type Source interface {
	Name() string
	Run(ctx context.Context, emit func(model.RawFrame)) error
}

// Option configures a Capture.
type Option func(*Capture)

// WithBlockWhenFull makes the capture wait for queue space instead of
// dropping. It is only meant for finite sources such as capture files.
func WithBlockWhenFull() Option {
	return func(c *Capture) { c.blockWhenFull = true }
}

// Capture runs a Source in the background and pushes its frames onto the
// hand-off queue.
type Capture struct {
	source        Source
	queue         *queue.BoundedQueue[model.RawFrame]
	logger        *zap.Logger
	blockWhenFull bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error

	alive    atomic.Bool
	captured atomic.Uint64
	dropped  atomic.Uint64
}

// NewCapture creates an idle Capture.
func NewCapture(source Source, q *queue.BoundedQueue[model.RawFrame], logger *zap.Logger, opts ...Option) *Capture {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Capture{
		source: source,
		queue:  q,
		logger: logger.With(zap.String("source", source.Name())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the source. Calling it while running logs a warning and
// does nothing.
func (c *Capture) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.logger.Warn("Capture already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.err = nil
	c.alive.Store(true)

	go c.run(ctx, c.done)
	c.logger.Info("Capture started")
}

func (c *Capture) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.alive.Store(false)

	err := c.source.Run(ctx, func(frame model.RawFrame) { c.enqueue(ctx, frame) })
	if err != nil && ctx.Err() == nil {
		c.logger.Error("Capture source failed", zap.Error(err))
	} else {
		c.logger.Info("Capture source finished",
			zap.Uint64("captured", c.captured.Load()),
			zap.Uint64("dropped", c.dropped.Load()))
	}

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *Capture) enqueue(ctx context.Context, frame model.RawFrame) {
	c.captured.Add(1)

	if c.blockWhenFull {
		for ctx.Err() == nil {
			if err := c.queue.Put(frame, true, 100*time.Millisecond); err == nil {
				return
			}
		}
		return
	}

	if err := c.queue.Put(frame, false, 0); err != nil {
		n := c.dropped.Add(1)
		telemetry.FramesDropped.Inc()
		if n == 1 || n%1000 == 0 {
			c.logger.Warn("Queue full, dropping frame", zap.Uint64("dropped_total", n))
		}
	}
}

// Stop cancels the source and waits for it to return. Calling it while idle
// logs a warning and does nothing.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		c.logger.Warn("Capture is not running")
		return
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	c.logger.Info("Capture stopped")
}

// Done returns a channel closed when the current run ends, or nil when idle.
func (c *Capture) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// IsAlive reports whether the source is still producing.
func (c *Capture) IsAlive() bool {
	return c.alive.Load()
}

// Err returns the error the last run ended with, if any.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Captured returns the number of frames received from the source.
func (c *Capture) Captured() uint64 {
	return c.captured.Load()
}

// Dropped returns the number of frames dropped on a full queue.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

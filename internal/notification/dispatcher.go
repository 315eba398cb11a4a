// Package notification exports accepted alerts to external systems without
// blocking the alert store.
package notification

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"NetSentinel/internal/telemetry"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Dispatcher buffers alerts for one sink and delivers them in batches from a
// background goroutine. Its Notify method is an alert store listener.
type Dispatcher struct {
	sink          model.AlertSink
	queue         chan model.Alert
	batchSize     int
	flushInterval time.Duration
	sendTimeout   time.Duration
	logger        *zap.Logger

	stopChan  chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
	delivered atomic.Uint64
}

// NewDispatcher creates a Dispatcher for sink. Call Start before use.
func NewDispatcher(sink model.AlertSink, cfg config.NotificationConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	return &Dispatcher{
		sink:          sink,
		queue:         make(chan model.Alert, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		sendTimeout:   sendTimeout,
		logger:        logger.With(zap.String("sink", sink.Name())),
		stopChan:      make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
		d.logger.Info("Notification dispatcher started",
			zap.Int("batch_size", d.batchSize), zap.Duration("flush_interval", d.flushInterval))
	})
}

// Notify hands alert to the delivery goroutine. It never blocks: when the
// buffer is full or the dispatcher is stopped the alert is dropped.
func (d *Dispatcher) Notify(alert model.Alert) {
	if d.stopped.Load() {
		telemetry.NotificationsDropped.WithLabelValues(d.sink.Name()).Inc()
		return
	}
	select {
	case d.queue <- alert:
	default:
		telemetry.NotificationsDropped.WithLabelValues(d.sink.Name()).Inc()
		d.logger.Warn("Notification buffer full, dropping alert", zap.String("alert_id", alert.ID))
	}
}

// Stop delivers whatever is buffered and waits for the goroutine to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopChan)
		d.wg.Wait()
		d.logger.Info("Notification dispatcher stopped", zap.Uint64("delivered", d.delivered.Load()))
	})
}

// Delivered returns the number of alerts the sink accepted.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	batch := make([]model.Alert, 0, d.batchSize)
	for {
		select {
		case alert := <-d.queue:
			batch = append(batch, alert)
			if len(batch) >= d.batchSize {
				batch = d.flush(batch)
			}
		case <-ticker.C:
			batch = d.flush(batch)
		case <-d.stopChan:
			for {
				select {
				case alert := <-d.queue:
					batch = append(batch, alert)
					if len(batch) >= d.batchSize {
						batch = d.flush(batch)
					}
				default:
					d.flush(batch)
					return
				}
			}
		}
	}
}

// flush delivers batch and returns it emptied for reuse.
func (d *Dispatcher) flush(batch []model.Alert) []model.Alert {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, batch); err != nil {
		telemetry.NotificationsFailed.WithLabelValues(d.sink.Name()).Inc()
		d.logger.Error("Failed to deliver alerts", zap.Int("count", len(batch)), zap.Error(err))
	} else {
		d.delivered.Add(uint64(len(batch)))
		d.logger.Debug("Delivered alerts", zap.Int("count", len(batch)))
	}
	return batch[:0]
}

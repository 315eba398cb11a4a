// Package app wires the pipeline together and owns its lifecycle.
package app

import (
	"NetSentinel/internal/alerter"
	"NetSentinel/internal/api"
	"NetSentinel/internal/config"
	"NetSentinel/internal/detection"
	"NetSentinel/internal/engine/processor"
	"NetSentinel/internal/engine/protocol"
	"NetSentinel/internal/engine/stats"
	"NetSentinel/internal/factory"
	"NetSentinel/internal/logging"
	"NetSentinel/internal/model"
	"NetSentinel/internal/notification"
	"NetSentinel/internal/probe"
	"NetSentinel/internal/queue"
	"NetSentinel/internal/telemetry"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option customises an App.
type Option func(*options)

type options struct {
	source   probe.Source
	registry *prometheus.Registry
}

// WithSource replaces the capture source selected by the configuration.
func WithSource(src probe.Source) Option {
	return func(o *options) { o.source = src }
}

// WithRegistry uses reg instead of a fresh Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// App is one running monitor: capture, processing loop, stores and outer surfaces.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	queue     *queue.BoundedQueue[model.RawFrame]
	metrics   *stats.Aggregator
	alerts    *alerter.Store
	detection *detection.Manager
	processor *processor.Processor
	capture   *probe.Capture
	finite    bool

	api         *api.Server
	telemetry   *http.Server
	dispatchers []*notification.Dispatcher
	closers     []func()
}

// New builds every component from cfg. Nothing is started.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	logger = logging.OrNop(logger)
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	a := &App{cfg: cfg, logger: logger}

	// 1. Core pipeline
	a.queue = queue.New[model.RawFrame](cfg.Queue.Capacity)
	a.metrics = stats.NewAggregator(cfg.Metrics.PPSWindow)

	alerts, err := alerter.NewStore(cfg.Alerts, logger.Named("alerts"))
	if err != nil {
		return nil, fmt.Errorf("failed to create alert store: %w", err)
	}
	a.alerts = alerts

	det, err := detection.NewFromConfig(&cfg.Detection, factory.Deps{Rates: a.metrics}, logger.Named("detection"))
	if err != nil {
		return nil, err
	}
	a.detection = det

	a.processor = processor.New(a.queue, protocol.NewParser(), a.metrics, a.detection, a.alerts,
		cfg.Processor.PollTimeout, logger.Named("processor"))

	// 2. Capture
	src := o.source
	if src == nil {
		src, err = sourceFor(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	var captureOpts []probe.Option
	if _, ok := src.(*probe.ReplaySource); ok {
		a.finite = true
		captureOpts = append(captureOpts, probe.WithBlockWhenFull())
	}
	a.capture = probe.NewCapture(src, a.queue, logger.Named("capture"), captureOpts...)

	// 3. Alert export
	if err := a.buildDispatchers(); err != nil {
		a.closeSinks()
		return nil, err
	}

	// 4. Outer surfaces
	if cfg.API.Enabled {
		a.api = api.NewServer(cfg.API, api.Deps{
			Metrics:   a.metrics,
			Alerts:    a.alerts,
			Capture:   a.capture,
			Processor: a.processor,
		}, logger.Named("api"))
	}
	if err := a.registerTelemetry(o.registry); err != nil {
		a.closeSinks()
		return nil, err
	}
	if cfg.Telemetry.ListenAddr != "" {
		a.telemetry = telemetry.NewServer(cfg.Telemetry.ListenAddr, o.registry)
	}

	return a, nil
}

func sourceFor(cfg *config.Config, logger *zap.Logger) (probe.Source, error) {
	switch cfg.Capture.Mode {
	case config.CaptureModeLive:
		return probe.NewLiveSource(cfg.Capture), nil
	case config.CaptureModeNATS:
		return probe.NewNATSSource(cfg.Probe.NATSURL, cfg.Probe.Subject, logger.Named("nats")), nil
	case config.CaptureModeReplay:
		if cfg.Capture.ReplayPath == "" {
			return nil, fmt.Errorf("%w: replay mode needs capture.replay_path", config.ErrInvalid)
		}
		return probe.NewReplaySource(cfg.Capture.ReplayPath), nil
	default:
		return nil, fmt.Errorf("%w: unknown capture mode %q", config.ErrInvalid, cfg.Capture.Mode)
	}
}

func (a *App) buildDispatchers() error {
	ncfg := a.cfg.Notification

	if ncfg.SMTP.Enabled {
		a.addSink(notification.NewEmailNotifier(ncfg.SMTP), nil)
	}
	if ncfg.NATS.Enabled {
		sink, err := notification.NewNATSSink(ncfg.NATS, a.logger)
		if err != nil {
			return err
		}
		a.addSink(sink, sink.Close)
	}
	if ncfg.ClickHouse.Enabled {
		sink, err := notification.NewClickHouseSink(ncfg.ClickHouse, a.logger)
		if err != nil {
			return err
		}
		a.addSink(sink, func() {
			if err := sink.Close(); err != nil {
				a.logger.Warn("Error closing ClickHouse connection", zap.Error(err))
			}
		})
	}
	return nil
}

func (a *App) addSink(sink model.AlertSink, closer func()) {
	a.dispatchers = append(a.dispatchers,
		notification.NewDispatcher(sink, a.cfg.Notification, a.logger.Named("notification")))
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
}

func (a *App) closeSinks() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}

func (a *App) registerTelemetry(reg *prometheus.Registry) error {
	if err := telemetry.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"queue_depth", "Frames waiting in the hand-off queue.", func() float64 { return float64(a.queue.Size()) }},
		{"packets_per_second", "Rolling packet rate seen by the pipeline.", a.metrics.PacketsPerSecond},
		{"websocket_clients", "Connected WebSocket clients.", func() float64 {
			if a.api == nil {
				return 0
			}
			return float64(a.api.ClientCount())
		}},
	}
	for _, g := range gauges {
		if err := telemetry.RegisterGauge(reg, g.name, g.help, g.fn); err != nil {
			return fmt.Errorf("failed to register %s gauge: %w", g.name, err)
		}
	}
	return nil
}

// Run starts the pipeline and blocks until ctx is cancelled or the capture
// source ends. A finite source is drained completely before returning.
func (a *App) Run(ctx context.Context) error {
	// 1. Export and telemetry first so nothing is missed.
	for _, d := range a.dispatchers {
		d.Start()
		a.alerts.AddListener(d.Notify)
	}
	if a.telemetry != nil {
		go func() {
			a.logger.Info("Telemetry server starting", zap.String("addr", a.telemetry.Addr))
			if err := a.telemetry.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Telemetry server failed", zap.Error(err))
			}
		}()
	}

	// 2. Consumer before producer.
	a.processor.Start()
	a.capture.Start()

	// 3. API last; a bind failure aborts the run.
	if a.api != nil {
		if err := a.api.Start(); err != nil {
			a.shutdown()
			return err
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown requested")
	case <-a.capture.Done():
		runErr = a.capture.Err()
		if runErr == nil && a.finite {
			a.drain(ctx)
		}
	}

	a.shutdown()
	return runErr
}

// drain waits until the processing loop has taken every queued frame.
func (a *App) drain(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !a.queue.IsEmpty() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) shutdown() {
	// 1. Stop producing, then let the worker finish the unit in hand.
	a.capture.Stop()
	a.processor.Stop()

	// 2. Outer surfaces.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.api != nil {
		if err := a.api.Shutdown(ctx); err != nil {
			a.logger.Warn("API shutdown incomplete", zap.Error(err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("Telemetry shutdown incomplete", zap.Error(err))
		}
	}

	// 3. Flush exports.
	for _, d := range a.dispatchers {
		d.Stop()
	}
	a.closeSinks()

	a.logger.Info("Pipeline stopped",
		zap.Uint64("captured", a.capture.Captured()),
		zap.Uint64("dropped", a.capture.Dropped()),
		zap.Uint64("processed", a.processor.Processed()),
		zap.Uint64("failed", a.processor.Failed()))
}

// Metrics returns the traffic statistics store.
func (a *App) Metrics() *stats.Aggregator { return a.metrics }

// Alerts returns the alert store.
func (a *App) Alerts() *alerter.Store { return a.alerts }

// Capture returns the capture engine.
func (a *App) Capture() *probe.Capture { return a.capture }

// Processor returns the processing loop.
func (a *App) Processor() *processor.Processor { return a.processor }

package probe

import (
	"NetSentinel/internal/model"
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSSource subscribes to the frames published by ns-probe.
type NATSSource struct {
	url     string
	subject string
	logger  *zap.Logger
}

// NewNATSSource creates a NATSSource.
func NewNATSSource(url, subject string, logger *zap.Logger) *NATSSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSource{url: url, subject: subject, logger: logger}
}

// Name implements Source.
func (s *NATSSource) Name() string { return "nats:" + s.subject }

// Run implements Source.
func (s *NATSSource) Run(ctx context.Context, emit func(model.RawFrame)) error {
	nc, err := nats.Connect(s.url, nats.Name("ns-sentinel frames"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", s.url, err)
	}
	defer nc.Close()
	s.logger.Info("Connected to NATS server", zap.String("url", s.url))

	sub, err := nc.Subscribe(s.subject, s.handler(emit))
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	s.logger.Info("Subscribed, waiting for frames", zap.String("subject", s.subject))

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		s.logger.Warn("Unsubscribe failed", zap.Error(err))
	}
	return nil
}

// handler decodes each message into a frame. Messages are delivered one at a
// time, so emit is never called concurrently.
func (s *NATSSource) handler(emit func(model.RawFrame)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		frame, err := DecodeFrame(msg.Data)
		if err != nil {
			s.logger.Debug("Dropping undecodable message", zap.Error(err))
			return
		}
		emit(frame)
	}
}

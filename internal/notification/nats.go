package notification

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsPublisher is the part of *nats.Conn the sink uses.
type natsPublisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSSink publishes every alert as a JSON message.
type NATSSink struct {
	conn    natsPublisher
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the configured NATS server.
func NewNATSSink(cfg config.NATSConfig, logger *zap.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ns-sentinel alerts"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	if logger != nil {
		logger.Info("Connected to NATS server for alert export", zap.String("url", cfg.URL), zap.String("subject", cfg.Subject))
	}
	return &NATSSink{conn: nc, nc: nc, subject: cfg.Subject}, nil
}

// Name implements model.AlertSink.
func (s *NATSSink) Name() string { return "nats" }

// Deliver implements model.AlertSink.
func (s *NATSSink) Deliver(ctx context.Context, alerts []model.Alert) error {
	for _, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode alert %s: %w", a.ID, err)
		}
		if err := s.conn.Publish(s.subject, data); err != nil {
			return fmt.Errorf("failed to publish alert %s: %w", a.ID, err)
		}
	}
	return s.conn.FlushWithContext(ctx)
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Drain()
	}
}

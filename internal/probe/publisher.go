package probe

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is responsible for publishing raw frames to a NATS topic.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("ns-probe"))
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to NATS server", zap.String("url", cfg.NATSURL))
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish encodes frame and publishes it to the configured NATS subject.
func (p *Publisher) Publish(frame model.RawFrame) error {
	return p.nc.Publish(p.subject, EncodeFrame(frame))
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.Warn("NATS drain failed", zap.Error(err))
		}
		p.logger.Info("NATS connection drained and closed")
	}
}

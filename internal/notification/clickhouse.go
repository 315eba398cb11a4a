package notification

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const createAlertsTableStatement = `
CREATE TABLE IF NOT EXISTS alerts (
    Timestamp   DateTime64(3),
    ID          String,
    Kind        LowCardinality(String),
    Source      String,
    Severity    LowCardinality(String),
    Details     String
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Kind, Timestamp);
`

// ClickHouseSink appends alerts to the alerts table.
type ClickHouseSink struct {
	conn driver.Conn
}

// NewClickHouseSink connects to ClickHouse and ensures the alerts table exists.
func NewClickHouseSink(cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseSink, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createAlertsTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create alerts table: %w", err)
	}
	if logger != nil {
		logger.Info("Connected to ClickHouse and ensured alerts table exists", zap.String("host", cfg.Host))
	}

	return &ClickHouseSink{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Name implements model.AlertSink.
func (s *ClickHouseSink) Name() string { return "clickhouse" }

// Deliver implements model.AlertSink.
func (s *ClickHouseSink) Deliver(ctx context.Context, alerts []model.Alert) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO alerts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, a := range alerts {
		r, err := toRow(a)
		if err != nil {
			return err
		}
		if err := batch.Append(r.timestamp, r.id, r.kind, r.source, r.severity, r.details); err != nil {
			return fmt.Errorf("failed to append alert to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

type row struct {
	timestamp time.Time
	id        string
	kind      string
	source    string
	severity  string
	details   string
}

func toRow(a model.Alert) (row, error) {
	details := "{}"
	if len(a.Details) > 0 {
		data, err := json.Marshal(a.Details)
		if err != nil {
			return row{}, fmt.Errorf("failed to encode details of alert %s: %w", a.ID, err)
		}
		details = string(data)
	}
	return row{
		timestamp: a.Timestamp.UTC(),
		id:        a.ID,
		kind:      a.Kind,
		source:    a.SourceKey,
		severity:  string(a.Severity),
		details:   details,
	}, nil
}

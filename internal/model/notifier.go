package model

import "context"

// AlertSink delivers accepted alerts to an external system.
type AlertSink interface {
	Name() string
	Deliver(ctx context.Context, alerts []Alert) error
}

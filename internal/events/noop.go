package events

import "context"

var (
	_ Publisher = (*NoopPublisher)(nil)
	_ Publisher = (*NATSPublisher)(nil)
)

// NoopPublisher discards every event. Chat clients use it when no NATS URL
// is configured or the bus cannot be reached.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }

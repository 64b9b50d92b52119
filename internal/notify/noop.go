package notify

import "context"

// NoopNotifier discards all alerts. Used when no delivery channel is
// configured.
type NoopNotifier struct{}

// NewNoopNotifier creates a NoopNotifier.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

func (*NoopNotifier) SendAlert(context.Context, *AlertPayload) error {
	return nil
}

func (*NoopNotifier) SendBatchAlert(context.Context, []AlertPayload) error {
	return nil
}

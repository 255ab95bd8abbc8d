package application

import (
	"context"

	"station-assistant/internal/domain"
)

// Sender delivers a command to the physical station. Delivery is best-effort.
type Sender interface {
	Send(ctx context.Context, address, command string, params domain.Params) error
}

// DeviceProbe fetches device information while connecting.
type DeviceProbe interface {
	Info(ctx context.Context, address string) (map[string]any, error)
}

type NoopSender struct{}

func (n *NoopSender) Send(_ context.Context, _ string, _ string, _ domain.Params) error {
	return nil
}

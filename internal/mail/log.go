package mail

import (
	"context"
	"log/slog"
)

// LogForwarder records forwards without sending anything. It is used when no
// relay is configured.
type LogForwarder struct{}

func (LogForwarder) Forward(ctx context.Context, raw []byte, to string) error {
	slog.WarnContext(ctx, "no mail relay configured, forward dropped", "to", to, "bytes", len(raw))
	return nil
}

func (LogForwarder) Name() string {
	return "log"
}

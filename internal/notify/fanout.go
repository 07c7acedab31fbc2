// Package notify fans report-created events out to the configured
// delivery channels.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/tipline/videoreports/internal/metrics"
	"github.com/tipline/videoreports/internal/report"
)

// Channel pairs a notifier with the name used in logs and metrics.
type Channel struct {
	Name     string
	Notifier report.Notifier
}

// Fanout delivers one event to every child channel. Delivery is best
// effort: a failing channel is logged and counted, never propagated, so
// a broken relay cannot fail a submission that already persisted.
type Fanout struct {
	logger   *zap.Logger
	channels []Channel
}

// NewFanout creates a Fanout over the given channels.
func NewFanout(logger *zap.Logger, channels ...Channel) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{logger: logger, channels: channels}
}

// Notify delivers the event to every channel in order.
func (f *Fanout) Notify(ctx context.Context, event report.CreatedEvent) error {
	for _, channel := range f.channels {
		if err := channel.Notifier.Notify(ctx, event); err != nil {
			f.logger.Warn("notification delivery failed",
				zap.String("channel", channel.Name),
				zap.Int64("report_id", event.Report.ID),
				zap.Error(err),
			)
			metrics.ObserveNotifyFailure(channel.Name)
		}
	}
	return nil
}

package channels

import (
	"context"

	"go.uber.org/zap"

	"github.com/batterybuildsog1/Project-manager/internal/models"
)

// LogSink is the delivery adapter for messages that never leave the host.
// It always acknowledges.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink builds the sink; a nil logger degrades to no-op.
func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log}
}

func (l *LogSink) Name() string { return models.ChannelLog }

func (l *LogSink) Send(_ context.Context, text string) error {
	l.log.Info("notification delivered to log sink", zap.String("text", text))
	return nil
}

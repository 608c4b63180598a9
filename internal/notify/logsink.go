package notify

import (
	"context"

	logx "calendd/pkg/logx"
)

// LogSink is the fallback displayer used when no delivery backend is
// configured: reminders land in the daemon log. Useful in dev and as a safe
// default for a bare config.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSink{log: log}
}

func (l *LogSink) CreateChannel(ctx context.Context) error {
	l.log.Debug("log notification sink ready")
	return nil
}

func (l *LogSink) Display(ctx context.Context, n Notification) error {
	l.log.Info("REMINDER",
		logx.Int64("slot", n.Slot),
		logx.String("title", n.Title),
		logx.String("body", n.Body))
	return nil
}

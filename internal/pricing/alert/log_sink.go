package alert

import (
	"context"
	"log/slog"

	"github.com/vietddude/pricewatch/internal/infra/storage"
)

// LogSink writes alerts to a structured logger.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{log: l}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Send(ctx context.Context, rec *storage.ReportRecord) error {
	s.log.ErrorContext(ctx, "Price feed alert",
		"feed", rec.Feed,
		"service", rec.Report.Service,
		"error_code", rec.Report.ErrorCode,
		"endpoint", rec.Report.Context.Endpoint,
		"reason", rec.Report.Context.Reason,
		"consecutive_failures", rec.Report.ConsecutiveFailures,
	)
	return nil
}

package worker

import (
	"context"

	"go.uber.org/zap"
)

// LogSender stands in for a messaging provider: it writes the invitation to the log.
type LogSender struct {
	from   string
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs deliveries.
func NewLogSender(from string, logger *zap.Logger) *LogSender {
	return &LogSender{from: from, logger: logger}
}

// Send logs the message as delivered.
func (s *LogSender) Send(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("invitation message",
		zap.String("from", s.from),
		zap.String("to", phone),
		zap.Int("chars", len([]rune(message))),
		zap.String("message", message),
	)
	return nil
}

package mail

import (
	"context"
	"log/slog"
)

// LogMailer "sends" by logging. It is used when no SMTP relay is configured,
// so local runs still show what would have gone out.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail not sent (no SMTP configured)",
		slog.String("from", msg.From),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("bytes", len(msg.HTML)),
	)
	return nil
}

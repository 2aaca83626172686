package mailer

import (
	"context"

	"anoa.com/yamdb/internal/logging"
)

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes outgoing mail to the log instead of delivering it.
type LogSender struct {
	From string
}

func NewLogSender(from string) *LogSender {
	return &LogSender{From: from}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	logging.Info().
		Str("component", "mailer").
		Str("from", s.From).
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("outgoing mail")
	return nil
}

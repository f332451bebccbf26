// Package notify delivers closing reports by e-mail and chat.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Message is a report ready to be delivered.
// Channels that cannot render HTML use Text.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Multi fans a message out to several channels.
// Every channel is attempted; failures are joined.
type Multi []Sender

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSender only writes the message to the log. It is used when no channel is configured.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("notification not delivered: no channel configured")
	l.logger.Debug().Msg(msg.Text)
	return nil
}

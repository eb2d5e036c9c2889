// Package mailer delivers transactional email through a pluggable provider.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/pkg/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Mailer sends a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the provider selected in configuration.
func New(cfg config.EmailConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("sendgrid provider requires SENDGRID_API_KEY")
		}
		return NewSendGrid(cfg.APIKey, cfg.FromName, cfg.FromAddress, cfg.AppName), nil
	case "", "log":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// LogMailer writes messages to the logger instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message envelope.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient required")
	}
	m.logger.Info("email_sent", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Int("html_bytes", len(msg.HTML)))
	return nil
}

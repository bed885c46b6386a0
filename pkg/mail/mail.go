package mail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/pkg/config"
)

// Address identifies a mailbox.
type Address struct {
	Name  string
	Email string
}

// Attachment is a file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outbound e-mail.
type Message struct {
	To          []Address
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

func (m Message) validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == "" {
		return fmt.Errorf("message has no content")
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns a SendGrid sender when an API key is configured, otherwise a console sender.
func NewSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	from := Address{Name: cfg.FromName, Email: cfg.FromEmail}
	if cfg.SendGridKey == "" {
		return NewConsoleSender(from, logger)
	}
	return NewSendGridSender(cfg.SendGridKey, from, logger)
}

// ConsoleSender writes messages to the logger instead of delivering them.
type ConsoleSender struct {
	from   Address
	logger *zap.Logger
}

// NewConsoleSender builds a ConsoleSender.
func NewConsoleSender(from Address, logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{from: from, logger: logger}
}

// Send logs the message envelope and text body.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.Email)
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	s.logger.Info("mail (console)",
		zap.String("from", s.from.Email),
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
		zap.Strings("attachments", names),
	)
	return nil
}

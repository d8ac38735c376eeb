// Package mailer composes and delivers outbound mail off the request path.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Message is one outbound mail.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender creates a Sender backed by an SMTP relay.
func NewSMTPSender(cfg SMTPConfig) (Sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &smtpSender{client: client, from: cfg.From}, nil
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return fmt.Errorf("invalid reply-to address: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.Body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

type logSender struct {
	logger *slog.Logger
}

// NewLogSender returns a Sender that only logs, used when no relay is configured.
func NewLogSender(logger *slog.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("mail relay not configured, message logged only",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig is the relay the SMTPMailer talks to.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	client *gomail.Client
}

// NewSMTPMailer builds a client for cfg. No connection is made until Send.
// Credentials are optional; without them the relay is used unauthenticated.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: creating smtp client: %w", err)
	}
	return &SMTPMailer{client: client}, nil
}

// Send dials the relay, delivers msg and hangs up.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm, err := buildMessage(msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, gm); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

// buildMessage converts a Message into a go-mail message.
func buildMessage(msg Message) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.FromFormat(msg.FromName, msg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid from address %q: %w", msg.From, err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: invalid to address %q: %w", msg.To, err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	return gm, nil
}

// NewDirectSender returns an SMTPMailer when cfg names a relay and a
// LogMailer otherwise.
func NewDirectSender(cfg SMTPConfig, logger *slog.Logger) (Sender, error) {
	if cfg.Host == "" {
		return NewLogMailer(logger), nil
	}
	return NewSMTPMailer(cfg)
}

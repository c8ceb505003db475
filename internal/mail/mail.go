// Package mail sends the registration confirmation email.
//
// DELIVERY PATHS:
//
//	EventService → Notifier → Sender
//	                            ├─ SMTPMailer  (inline, SMTP_HOST set)
//	                            ├─ LogMailer   (inline, no SMTP configured)
//	                            └─ Queue       (REDIS_ADDR set) → cmd/worker → SMTPMailer/LogMailer
//
// Every path is best-effort from the API's point of view: a failed send is
// logged by the caller and never undoes the registration it confirms.
package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// ConfirmationSubject is the subject line of every confirmation email.
const ConfirmationSubject = "Registration Confirmation"

// Message is one fully rendered email.
type Message struct {
	FromName string `json:"fromName"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
}

// Sender delivers (or schedules delivery of) a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Confirmation is what the attendee is told about the event they joined.
type Confirmation struct {
	To           string
	AttendeeName string
	EventName    string
	Date         string // yyyy-mm-dd
	Time         string // hh:mm
}

// Notifier renders confirmations and hands them to a Sender.
type Notifier struct {
	sender   Sender
	from     string
	fromName string
	logger   *slog.Logger
}

// NewNotifier creates a Notifier sending as "fromName <from>".
func NewNotifier(sender Sender, from, fromName string, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, from: from, fromName: fromName, logger: logger}
}

// SendRegistrationConfirmation renders and sends the confirmation email.
func (n *Notifier) SendRegistrationConfirmation(ctx context.Context, c Confirmation) error {
	body, err := RenderConfirmation(c)
	if err != nil {
		return fmt.Errorf("mail: rendering confirmation: %w", err)
	}

	msg := Message{
		FromName: n.fromName,
		From:     n.from,
		To:       c.To,
		Subject:  ConfirmationSubject,
		HTML:     body,
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("mail: sending confirmation to %s: %w", c.To, err)
	}

	n.logger.Debug("registration confirmation handed off",
		slog.String("to", c.To),
		slog.String("event", c.EventName),
	)
	return nil
}

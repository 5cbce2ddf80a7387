package contact

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender sends mail through an authenticated SMTP relay, Gmail by default.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(opt SMTPOptions) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(opt.Host, opt.Port, opt.Username, opt.Password),
		from:   opt.Username,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", m.To)
	if m.ReplyTo != "" {
		msg.SetHeader("Reply-To", m.ReplyTo)
	}
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTML)

	// gomail has no context support; give up waiting when the request ends.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

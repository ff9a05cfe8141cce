package jobs

import (
	"bytes"
	"context"
	"fmt"
	"time"

	mail "github.com/wneessen/go-mail"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outgoing e-mail.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends plain SMTP without authentication, which is what the
// local relay (Mailpit in development) expects.
type SMTPMailer struct {
	host    string
	port    int
	from    string
	timeout time.Duration
	now     func() time.Time
}

// NewSMTPMailer builds a mailer for host:port.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, timeout: 15 * time.Second, now: time.Now}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	composed, err := m.compose(msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.NoTLS),
		mail.WithTimeout(m.timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp: client for %s: %w", m.host, err)
	}
	if err := client.DialAndSendWithContext(ctx, composed); err != nil {
		return fmt.Errorf("smtp: send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("smtp: from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp: recipient: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDateWithValue(m.now().UTC())
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := out.AttachReader(a.Filename, bytes.NewReader(a.Content), opts...); err != nil {
			return nil, fmt.Errorf("smtp: attach %s: %w", a.Filename, err)
		}
	}
	return out, nil
}

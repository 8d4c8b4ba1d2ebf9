// Package mailer sends notification mail through the company relay.
//
// The relay accepts plain SMTP on port 25 from inside the network, so
// there is no authentication and no TLS negotiation by default. Jobs
// use Send for ad-hoc mail and Report for the canned message to the
// reporting inbox.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/wneessen/go-mail"
)

// Relay defaults.
const (
	DefaultHost = "mail.wcap.ca"
	DefaultPort = 25

	// Canned report routing.
	reportSender    = "Automation@wcap.ca"
	reportRecipient = "Reporting@wcap.ca"
)

// Message is one outbound mail. Body is sent as text/plain unless
// HTML is set. Attachments are file paths, read at send time.
type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []string
}

// normalized de-duplicates the recipient lists. Order of first
// appearance is preserved, and an address claimed by To never repeats
// in Cc or Bcc (nor a Cc address in Bcc).
func (m Message) normalized() Message {
	seen := make(map[string]struct{}, len(m.To)+len(m.Cc)+len(m.Bcc))
	take := func(addrs []string) []string {
		var out []string
		for _, a := range addrs {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
		return out
	}

	m.To = take(m.To)
	m.Cc = take(m.Cc)
	m.Bcc = take(m.Bcc)
	return m
}

// Client sends through one relay host.
type Client struct {
	host   string
	port   int
	logger *slog.Logger
}

// Option adjusts a Client under construction.
type Option func(*Client)

// WithHost points the client at a different relay.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

// WithPort overrides the relay port.
func WithPort(port int) Option {
	return func(c *Client) { c.port = port }
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for the company relay.
func New(opts ...Option) *Client {
	c := &Client{
		host:   DefaultHost,
		port:   DefaultPort,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers one message. The message must carry a sender and at
// least one To recipient; attachment paths are checked before dialing
// so a bad path fails without touching the relay.
func (c *Client) Send(ctx context.Context, m Message) error {
	msg, err := build(m)
	if err != nil {
		return err
	}

	c.logger.Debug("sending mail",
		slog.String("subject", m.Subject),
		slog.Int("recipients", len(m.To)+len(m.Cc)+len(m.Bcc)))

	client, err := mail.NewClient(c.host,
		mail.WithPort(c.port),
		mail.WithTLSPolicy(mail.NoTLS),
	)
	if err != nil {
		return fmt.Errorf("relay client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %q: %w", m.Subject, err)
	}
	return nil
}

// Report mails the reporting inbox from the shared automation sender.
func (c *Client) Report(ctx context.Context, subject, body string) error {
	return c.Send(ctx, Message{
		From:    reportSender,
		To:      []string{reportRecipient},
		Subject: subject,
		Body:    body,
	})
}

// build converts a Message into the wire form.
func build(m Message) (*mail.Msg, error) {
	if m.From == "" {
		return nil, fmt.Errorf("message needs a sender")
	}
	if len(m.To) == 0 {
		return nil, fmt.Errorf("message needs at least one recipient")
	}
	m = m.normalized()

	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.From, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	if len(m.Cc) > 0 {
		if err := msg.Cc(m.Cc...); err != nil {
			return nil, fmt.Errorf("cc: %w", err)
		}
	}
	if len(m.Bcc) > 0 {
		if err := msg.Bcc(m.Bcc...); err != nil {
			return nil, fmt.Errorf("bcc: %w", err)
		}
	}
	msg.Subject(m.Subject)
	msg.SetDate()

	contentType := mail.TypeTextPlain
	if m.HTML {
		contentType = mail.TypeTextHTML
	}
	msg.SetBodyString(contentType, m.Body)

	for _, path := range m.Attachments {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("attachment %s: %w", path, err)
		}
		msg.AttachFile(path)
	}
	return msg, nil
}

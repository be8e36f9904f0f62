package adapter

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/smtp"
)

// EmailConfig holds sender settings
type EmailConfig struct {
	FromEmail string
	FromName  string
}

// mailer is the part of the SMTP pool the transport needs
type mailer interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
	Ping(ctx context.Context) error
}

// EmailTransport sends email through pooled SMTP connections
type EmailTransport struct {
	config EmailConfig
	mailer mailer
	now    func() time.Time
}

// NewEmailTransport creates an email transport
func NewEmailTransport(config EmailConfig, pool *smtp.Pool) *EmailTransport {
	return &EmailTransport{config: config, mailer: pool, now: time.Now}
}

// Kind implements Transport
func (t *EmailTransport) Kind() domain.ChannelKind { return domain.ChannelKindEmail }

// Send implements Transport
func (t *EmailTransport) Send(ctx context.Context, channel *domain.Channel, d *domain.Delivery) error {
	if err := requireAddress(d); err != nil {
		return err
	}
	msg := t.buildMessage(d.Address, d.Content)
	return t.mailer.Send(ctx, t.config.FromEmail, []string{d.Address}, msg)
}

// Probe implements Transport
func (t *EmailTransport) Probe(ctx context.Context, channel *domain.Channel) error {
	return t.mailer.Ping(ctx)
}

func (t *EmailTransport) buildMessage(to string, content domain.RenderedContent) []byte {
	from := t.config.FromEmail
	if t.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", t.config.FromName), t.config.FromEmail)
	}

	// HTML wins when the template provides it
	contentType := "text/plain"
	body := content.Body
	if content.HTML != "" {
		contentType = "text/html"
		body = content.HTML
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", content.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", t.now().Format(time.RFC1123Z))
	if content.Locale != "" {
		fmt.Fprintf(&b, "Content-Language: %s\r\n", content.Locale)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// Package email implements the notify EmailGateway over SMTP.
package email

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/oakline/upkeep/internal/config"
)

// Gateway sends multipart (HTML + plain text) mail through one SMTP host.
type Gateway struct {
	addr string
	host string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates an SMTP gateway from config. Returns nil (channel disabled)
// when no host is configured.
func New(cfg config.EmailConfig) *Gateway {
	if cfg.Host == "" {
		return nil
	}
	g := &Gateway{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		host: cfg.Host,
		from: cfg.From,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		g.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return g
}

// SendEmail delivers one message with an HTML part and a text part.
func (g *Gateway) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email: %w", err)
	}

	msg := buildMessage(g.from, to, subject, htmlBody, textBody)
	if err := g.send(g.addr, g.auth, g.from, []string{to}, msg); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}

// buildMessage assembles a multipart/alternative MIME message.
func buildMessage(from, to, subject, htmlBody, textBody string) []byte {
	const boundary = "upkeep-alt-1"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%s\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

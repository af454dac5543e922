// Package proof emails a rendered campaign to operators for review before
// it is handed to the automation hook.
package proof

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/lunaticom/campaign-builder/internal/apperr"
	"github.com/lunaticom/campaign-builder/internal/dkim"
)

// SendFunc delivers a message through a relay. It matches smtp.SendMail.
type SendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// Config holds relay settings
type Config struct {
	Addr        string
	ImplicitTLS bool
	Username    string
	Password    string
	From        string
}

// Message is one proof email
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers proof emails
type Sender struct {
	cfg    Config
	signer *dkim.Signer
	send   SendFunc
	logger *slog.Logger
	now    func() time.Time
}

// NewSender creates a sender. signer may be nil.
func NewSender(cfg Config, signer *dkim.Signer, logger *slog.Logger) *Sender {
	send := smtp.SendMail
	if cfg.ImplicitTLS {
		send = smtp.SendMailTLS
	}
	return &Sender{
		cfg:    cfg,
		signer: signer,
		send:   send,
		logger: logger,
		now:    time.Now,
	}
}

// Send builds, optionally signs, and relays msg. Relay failures are not retried.
func (s *Sender) Send(ctx context.Context, msg *Message) (string, error) {
	if len(msg.To) == 0 {
		return "", apperr.Validation("at least one recipient is required")
	}
	// the To header keeps display names, the envelope gets bare addresses
	rcpt := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return "", apperr.Validationf(err, "invalid recipient %q", addr)
		}
		rcpt = append(rcpt, parsed.Address)
	}

	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), domainOf(s.cfg.From))
	data := buildMessage(s.cfg.From, msg, messageID, s.now())

	if s.signer != nil {
		signed, err := s.signer.Sign(data)
		if err != nil {
			s.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", s.signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	if err := s.send(s.cfg.Addr, auth, envelopeAddress(s.cfg.From), rcpt, bytes.NewReader(data)); err != nil {
		s.logger.Warn("proof delivery failed", "relay", s.cfg.Addr, "error", err)
		return "", apperr.Upstream("proof delivery failed", err.Error())
	}

	s.logger.Info("proof sent",
		"message_id", messageID,
		"to", msg.To,
	)
	return messageID, nil
}

// buildMessage constructs a multipart/alternative RFC 5322 message
func buildMessage(from string, msg *Message, messageID string, now time.Time) []byte {
	var buf bytes.Buffer
	boundary := uuid.New().String()

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", messageID)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	buf.WriteString("\r\n")

	if msg.Text != "" {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(crlf(msg.Text))
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(crlf(msg.HTML))
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}

// crlf normalizes line endings for the wire
func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// envelopeAddress strips the display name from a From header value
func envelopeAddress(from string) string {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address
	}
	return from
}

func domainOf(from string) string {
	addr := envelopeAddress(from)
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

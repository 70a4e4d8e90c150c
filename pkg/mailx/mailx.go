// Package mailx delivers transactional email such as one-time codes.
package mailx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"time"
)

// ErrDelivery wraps every transport failure returned by a Sender.
var ErrDelivery = errors.New("mailx: delivery failed")

// Message is a single outbound email. HTML is optional; when present the
// message is sent as HTML, otherwise as plain text.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender hands a message to a transport. Implementations must respect ctx
// cancellation and wrap failures with ErrDelivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. It is
// meant for local development where no SMTP relay exists.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "email not sent, logging instead",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

// compose renders msg as an RFC 5322 message.
func compose(from string, msg Message, now time.Time) []byte {
	contentType, body := "text/plain; charset=UTF-8", msg.Text
	if msg.HTML != "" {
		contentType, body = "text/html; charset=UTF-8", msg.HTML
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}

// Package smtp отправляет письма через SMTP-сервер.
package smtp

import (
	"context"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// Mailer отправляет готовое письмо.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message - текстовое письмо.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Validate проверяет адреса получателей.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", to, err)
		}
	}
	return nil
}

// Bytes собирает письмо с заголовками. Тема кодируется по RFC 2047.
func (m Message) Bytes(from string, now time.Time) []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", from)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	// в теле допустимы только CRLF
	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// envelopeAddress возвращает адрес для MAIL FROM из строки вида "Имя <addr>".
func envelopeAddress(from string) (string, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", fmt.Errorf("invalid sender %q: %w", from, err)
	}
	return addr.Address, nil
}

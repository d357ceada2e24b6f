package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
)

const dialTimeout = 10 * time.Second

// Transport отправляет письма, открывая отдельное SMTP-соединение на каждое письмо.
type Transport struct {
	cfg  config.SMTP
	from string
	log  *slog.Logger
	now  func() time.Time
}

// NewTransport создает Transport. Адрес отправителя берётся из SMTPFrom, иначе из SMTPUser.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Transport{cfg: cfg, from: from, log: log, now: time.Now}
}

// From возвращает адрес отправителя для заголовка From.
func (t *Transport) From() string {
	return t.from
}

// Send доставляет письмо. Отмена ctx прерывает соединение.
func (t *Transport) Send(ctx context.Context, msg Message) error {
	const op = "smtp.Transport.Send"
	log := t.log.With(slog.String("op", op), slog.Any("to", msg.To))

	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sender, err := envelopeAddress(t.from)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	client, err := t.connect(ctx)
	if err != nil {
		log.Error("failed to connect to SMTP server", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(sender); err != nil {
		return fmt.Errorf("%s: MAIL FROM %s: %w", op, sender, err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("%s: RCPT TO %s: %w", op, to, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: DATA: %w", op, err)
	}
	if _, err := wc.Write(msg.Bytes(t.from, t.now())); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close body: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		log.Warn("failed to quit SMTP session", sl.Err(err))
	}

	log.Info("email sent")
	return nil
}

func (t *Transport) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if !t.cfg.SMTPInsecure {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, fmt.Errorf("smtp server does not support STARTTLS")
		}
		tlsConfig := &tls.Config{
			ServerName: t.cfg.SMTPHost,
			MinVersion: tls.VersionTLS12,
		}
		if err = client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if t.cfg.SMTPPass != "" {
		auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
		if err = client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	return client, nil
}

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"resourcehive/internal/config"
)

// EmailSink delivers mail through the configured SMTP relay. Sends are
// fire-and-forget with a bounded timeout; the engine never waits on an ACK.
type EmailSink struct {
	host     string
	port     int
	username string
	password string
	from     string
	useTLS   bool
	timeout  time.Duration
}

func NewEmailSink(cfg *config.Config) *EmailSink {
	return &EmailSink{
		host:     cfg.EmailHost,
		port:     cfg.EmailPort,
		username: cfg.EmailHostUser,
		password: cfg.EmailHostPassword,
		from:     cfg.EmailFrom,
		useTLS:   cfg.EmailUseTLS,
		timeout:  10 * time.Second,
	}
}

func (e *EmailSink) Send(ctx context.Context, to, subject, body string) error {
	if e.host == "" {
		return fmt.Errorf("email relay not configured")
	}

	var msg strings.Builder
	msg.WriteString("From: " + e.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.deliver(to, msg.String())
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email send to %s timed out: %w", to, ctx.Err())
	}
}

// deliver speaks the SMTP conversation directly so EMAIL_USE_TLS decides
// whether STARTTLS is negotiated, rather than leaving it to whatever the
// relay advertises.
func (e *EmailSink) deliver(to, msg string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if e.useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
			return err
		}
	}

	if e.username != "" {
		if err := client.Auth(smtp.PlainAuth("", e.username, e.password, e.host)); err != nil {
			return err
		}
	}

	if err := client.Mail(e.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	return client.Quit()
}

package notify

import (
	"context"
	"fmt"
	"strings"

	"resourcehive/internal/metrics"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

// Bus is the single entry point for lifecycle notifications. In-app rows are
// synchronous; email and SMS are fire-and-forget and a failed send never
// aborts the business transaction that triggered it.
type Bus struct {
	notifications *NotificationRepository
	email         *EmailSink
	sms           *SMSSink
	metrics       *metrics.Metrics
	log           *zap.Logger
}

func NewBus(nr *NotificationRepository, email *EmailSink, sms *SMSSink, m *metrics.Metrics, log *zap.Logger) *Bus {
	return &Bus{
		notifications: nr,
		email:         email,
		sms:           sms,
		metrics:       m,
		log:           log,
	}
}

func (b *Bus) NotifyTx(tx *goqu.TxDatabase, userID int, message, remarks string) error {
	return b.notifications.InsertTx(tx, userID, message, remarks)
}

func (b *Bus) Notify(userID int, message, remarks string) error {
	return b.notifications.Insert(userID, message, remarks)
}

// SendEmail delivers best-effort in the background. Errors are logged and
// counted; callers get no failure signal.
func (b *Bus) SendEmail(to, subject, body string) {
	if to == "" {
		return
	}
	go func() {
		if err := b.email.Send(context.Background(), to, subject, body); err != nil {
			b.metrics.NotificationsFailed.WithLabelValues("email").Inc()
			b.log.Warn("email delivery failed", zap.String("to", to), zap.Error(err))
		}
	}()
}

// SendEmailBlocking delivers and reports the result; the scheduler needs the
// outcome before marking a reminder as sent.
func (b *Bus) SendEmailBlocking(ctx context.Context, to, subject, body string) error {
	if err := b.email.Send(ctx, to, subject, body); err != nil {
		b.metrics.NotificationsFailed.WithLabelValues("email").Inc()
		b.log.Warn("email delivery failed", zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}

// SendSMSBlocking delivers and reports the result; the scheduler needs the
// outcome to decide whether to mark items as notified.
func (b *Bus) SendSMSBlocking(ctx context.Context, phone, message string) error {
	if err := b.sms.Send(ctx, phone, message); err != nil {
		b.metrics.NotificationsFailed.WithLabelValues("sms").Inc()
		b.log.Warn("sms delivery failed", zap.String("phone", phone), zap.Error(err))
		return err
	}
	return nil
}

// FormatOverdueSMS summarizes a user's overdue items: at most three
// "{name} (x{qty})" entries, then "and N more".
func FormatOverdueSMS(entries []OverdueEntry) string {
	const maxNamed = 3

	parts := make([]string, 0, maxNamed)
	for i, entry := range entries {
		if i == maxNamed {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (x%d)", entry.PropertyName, entry.Quantity))
	}

	summary := strings.Join(parts, ", ")
	if extra := len(entries) - maxNamed; extra > 0 {
		summary = fmt.Sprintf("%s and %d more", summary, extra)
	}

	return fmt.Sprintf("ResourceHive: The following borrowed item(s) are OVERDUE: %s. Please return them as soon as possible.", summary)
}

type OverdueEntry struct {
	PropertyName string
	Quantity     int
}

package notify

import (
	"context"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/percal/percal/internal/config"
	log "github.com/sirupsen/logrus"
)

const sendTimeout = 10 * time.Second

// MailgunNotifier emails the configured admin recipients through Mailgun.
// Sends happen on the caller's goroutine; callers that must not block
// dispatch through the task queue (see internal/task_queue).
type MailgunNotifier struct {
	cfg config.Mailgun
}

func NewMailgunNotifier(cfg config.Mailgun) *MailgunNotifier {
	return &MailgunNotifier{cfg: cfg}
}

func (m *MailgunNotifier) Notify(subject, message string) {
	if m.cfg.Domain == "" || m.cfg.APIKey == "" {
		log.Warnf("mailgun not configured, dropping admin notification: %s", subject)
		return
	}

	mg := mailgun.NewMailgun(m.cfg.Domain, m.cfg.APIKey)

	recipients := strings.Join(m.cfg.AdminRecipients, ", ")
	msg := mg.NewMessage(m.cfg.Sender, subject, message, recipients)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	_, id, err := mg.Send(ctx, msg)
	if err != nil {
		log.Errorf("failed to send admin notification %q: %v", subject, err)
		return
	}
	log.Debugf("admin notification sent: %s (%s)", subject, id)
}

package alerts

import (
	"fmt"

	"github.com/phantomsec/threatwatch/internal/models"
	"gopkg.in/gomail.v2"
)

// EmailNotifier sends alerts to a configured mailbox. Optional channel,
// mainly useful for unattended deployments without a webhook bridge.
type EmailNotifier struct {
	to       string
	host     string
	port     int
	username string
	password string
}

var _ Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier creates an SMTP-backed alert channel.
func NewEmailNotifier(to, host string, port int, username, password string) *EmailNotifier {
	return &EmailNotifier{
		to:       to,
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

func (e *EmailNotifier) Name() string {
	return "email"
}

func (e *EmailNotifier) Notify(alert *models.Alert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.username)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", alert.Title)
	m.SetBody("text/plain", fmt.Sprintf("%s\n\n%s", alert.ReasonSummary, alert.BodyPreview))

	d := gomail.NewDialer(e.host, e.port, e.username, e.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

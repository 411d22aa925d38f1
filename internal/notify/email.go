// Package notify delivers operator notifications over SMTP.
package notify

import (
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Config mirrors the emailNotification block of config.json.
type Config struct {
	SMTPHost  string
	SMTPPort  int
	Username  string
	Password  string
	Recipient string
	SSL       bool
}

// Mailer implements booking.Notifier over SMTP. Sending is fire and
// forget: failures are logged and swallowed, the booking flow never
// waits on or learns about them.
type Mailer struct {
	cfg  Config
	log  *zap.Logger
	send func(*gomail.Message) error
}

func NewMailer(cfg Config, log *zap.Logger) *Mailer {
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 465
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL
	return &Mailer{cfg: cfg, log: log, send: func(m *gomail.Message) error {
		return d.DialAndSend(m)
	}}
}

func (m *Mailer) Notify(subject, body string) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Username)
	msg.SetHeader("To", m.cfg.Recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	go m.deliver(subject, msg)
}

func (m *Mailer) deliver(subject string, msg *gomail.Message) {
	if err := m.send(msg); err != nil {
		m.log.Warn("notification mail failed",
			zap.String("subject", subject), zap.Error(err))
		return
	}
	m.log.Info("notification sent", zap.String("subject", subject))
}

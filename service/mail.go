package service

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"souschef/platform"
)

// Mailer delivers one message with text and HTML bodies.
type Mailer interface {
	Send(to, subject, text, html string) error
}

type SMTPMailer struct {
	Addr     string
	Host     string
	User     string
	Password string
	From     string
}

func NewSMTPMailer(cfg *platform.Config) *SMTPMailer {
	return &SMTPMailer{
		Addr:     cfg.SMTPAddr,
		Host:     cfg.SMTPHost,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}
}

func (m *SMTPMailer) Send(to, subject, text, html string) error {
	if m.Addr == "" {
		return fmt.Errorf("mail delivery is not configured")
	}
	e := email.NewEmail()
	e.From = m.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(text)
	e.HTML = []byte(html)

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Password, m.Host)
	}
	if err := e.Send(m.Addr, auth); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

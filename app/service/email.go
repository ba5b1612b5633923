package service

import (
	"fmt"

	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"

	"github.com/letterstack/ms-go-account/config"
)

const accountConfirmationBody = `
	<h2>Welcome!</h2>
	<p>Please confirm your email address by clicking the link below:</p>
	<p><a href="%s">Verify your account</a></p>
	<p>If you did not create an account, you can ignore this email.</p>
`

const passwordResetBody = `
	<h2>Password reset</h2>
	<p>We received a request to reset your password. Click the link below to choose a new one:</p>
	<p><a href="%s">Reset your password</a></p>
	<p>If you did not request a reset, you can ignore this email.</p>
`

// SMTPMailer delivers account emails over SMTP.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	// baseDomain is the public origin the email links point at.
	baseDomain string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass)
	return &SMTPMailer{
		dialer:     dialer,
		from:       cfg.SMTP.From,
		baseDomain: cfg.BaseDomain,
	}
}

func (m *SMTPMailer) AccountConfirmation(to, verificationToken string) bool {
	link := fmt.Sprintf("%s/auth/verify?token=%s", m.baseDomain, verificationToken)
	return m.send(to, "Verify your account", fmt.Sprintf(accountConfirmationBody, link))
}

func (m *SMTPMailer) PasswordReset(to, resetToken string) bool {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", m.baseDomain, resetToken)
	return m.send(to, "Reset your password", fmt.Sprintf(passwordResetBody, link))
}

func (m *SMTPMailer) send(to, subject, htmlBody string) bool {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		logrus.WithError(err).WithField("to", to).Error("Failed to send email")
		return false
	}

	logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email sent")
	return true
}

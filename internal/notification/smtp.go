package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPNotifier sends verification codes by email through an SMTP relay.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPNotifier builds a mail notifier from SMTP settings.
func NewSMTPNotifier(host string, port int, user, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// SendVerificationCode emails the code to the given address.
func (n *SMTPNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your Kulicha verification code")

	body := fmt.Sprintf(`
		<h3>Verify your email</h3>
		<p>Enter this code to continue: <strong>%s</strong></p>
		<p>If you did not request this code, you can ignore this email.</p>
	`, code)
	m.SetBody("text/html", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Notifier renders account notifications and hands them to a Mailer.
type Notifier struct {
	mailer      Mailer
	frontendURL string
}

// NewNotifier creates a notifier. frontendURL is the base of the links
// embedded in verification and reset mails.
func NewNotifier(mailer Mailer, frontendURL string) *Notifier {
	return &Notifier{mailer: mailer, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// VerificationLink builds the link that confirms an email address.
func (n *Notifier) VerificationLink(token string) string {
	return n.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

// ResetLink builds the password reset link.
func (n *Notifier) ResetLink(token string) string {
	return n.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
}

// SendWelcome sends the greeting after registration.
func (n *Notifier) SendWelcome(ctx context.Context, to, name string) error {
	return n.mailer.Send(ctx, Message{
		To:      to,
		Subject: "Welcome to Transit",
		Body: fmt.Sprintf("Hello %s,\n\nyour Transit account has been created.\n"+
			"Please confirm your email address to activate it.\n", name),
	})
}

// SendVerification sends the email confirmation link.
func (n *Notifier) SendVerification(ctx context.Context, to, name, token string) error {
	return n.mailer.Send(ctx, Message{
		To:      to,
		Subject: "Confirm your email address",
		Body: fmt.Sprintf("Hello %s,\n\nconfirm your email address by opening the link below:\n\n%s\n\n"+
			"The link is valid for 24 hours.\n", name, n.VerificationLink(token)),
	})
}

// SendLoginCode sends the one-time login code.
func (n *Notifier) SendLoginCode(ctx context.Context, to, name, code string, ttl time.Duration) error {
	return n.mailer.Send(ctx, Message{
		To:      to,
		Subject: "Your Transit login code",
		Body: fmt.Sprintf("Hello %s,\n\nyour login code is %s\n\nIt expires in %s. "+
			"If you did not try to sign in, change your password.\n", name, code, ttl),
	})
}

// SendPasswordReset sends the password reset link.
func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return n.mailer.Send(ctx, Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hello %s,\n\na password reset was requested for your account:\n\n%s\n\n"+
			"The link is valid for 1 hour. If you did not request it, ignore this email.\n", name, n.ResetLink(token)),
	})
}

// SendPasswordChanged confirms a password change or reset.
func (n *Notifier) SendPasswordChanged(ctx context.Context, to, name string) error {
	return n.mailer.Send(ctx, Message{
		To:      to,
		Subject: "Your password was changed",
		Body: fmt.Sprintf("Hello %s,\n\nthe password of your Transit account was changed.\n"+
			"If it was not you, contact support immediately.\n", name),
	})
}

// Package mail builds and delivers the account emails: password reset codes
// and activation codes for admin-created users.
package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
)

// Message is a single outbound HTML email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Validate rejects messages that no transport could deliver.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail: recipient is empty")
	}
	if strings.ContainsAny(m.To+m.Subject, "\r\n") {
		return errors.New("mail: header contains a line break")
	}
	return nil
}

// Mailer delivers a message.  Implementations: SMTPSender (inline) and
// queue.Publisher (hands the message to the mail consumer).
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// ResetPassword is the message sent by forgot-password.
func ResetPassword(to, code, frontendURL string) Message {
	link := fmt.Sprintf("%s/reset-password?email=%s", strings.TrimRight(frontendURL, "/"), url.QueryEscape(to))
	return Message{
		To:      to,
		Subject: "Reset my password",
		HTML: fmt.Sprintf(`<p>Click the link below to reset your password. Your reset code: <b>%s</b>.</p>
<p><a href="%s">Reset password</a></p>`, html.EscapeString(code), html.EscapeString(link)),
	}
}

// AccountVerification is the message sent when an admin creates a user.
func AccountVerification(to, code, frontendURL string) Message {
	link := fmt.Sprintf("%s/confirm-account?email=%s", strings.TrimRight(frontendURL, "/"), url.QueryEscape(to))
	return Message{
		To:      to,
		Subject: "Account Verification",
		HTML: fmt.Sprintf(`<p>Click the link below to verify your account and choose a new password. Your activation code: <b>%s</b>.</p>
<p><a href="%s">Confirm account</a></p>`, html.EscapeString(code), html.EscapeString(link)),
	}
}

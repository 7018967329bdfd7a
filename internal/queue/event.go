// Package queue moves outbound mail through RabbitMQ.  Request handlers
// publish a MailRequestedEvent and return; a background consumer delivers it
// over SMTP.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/rbac-backend/internal/mail"
)

// MailRequestedEvent is the body of one message on the mail queue.
type MailRequestedEvent struct {
	ID          string       `json:"id"`
	Message     mail.Message `json:"message"`
	RequestedAt string       `json:"requested_at"`
}

func newMailEvent(m mail.Message, now time.Time) MailRequestedEvent {
	return MailRequestedEvent{
		ID:          uuid.NewString(),
		Message:     m,
		RequestedAt: now.UTC().Format(time.RFC3339),
	}
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/rbac-backend/internal/mail"
)

// Publisher implements mail.Mailer by publishing to the mail queue.  Each
// Send dials its own connection: mail is rare enough that a pooled channel
// is not worth the reconnect handling.
type Publisher struct {
	URL    string
	Queue  string
	Logger *logrus.Logger
}

func NewPublisher(url, queue string, logger *logrus.Logger) *Publisher {
	return &Publisher{URL: url, Queue: queue, Logger: logger}
}

// Send publishes m as a persistent message.  Errors are logged and
// returned; callers treat mail as best-effort.
func (p *Publisher) Send(ctx context.Context, m mail.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	ev := newMailEvent(m, time.Now())
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal mail event: %w", err)
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Logger.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		p.Logger.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		p.Logger.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	p.Logger.WithFields(logrus.Fields{"mail_id": ev.ID, "queue": p.Queue}).Debug("mail queued")
	return nil
}

package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Notifier delivers a notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// StoreNotifier writes notifications straight to the store.
type StoreNotifier struct {
	Store Store
}

func (s StoreNotifier) Notify(ctx context.Context, n Notification) error {
	return s.Store.AddNotification(ctx, &n)
}

// RabbitNotifier publishes notifications to a durable queue; Listen drains
// the queue into the store.
type RabbitNotifier struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewRabbitNotifier(url, queue string) (*RabbitNotifier, error) {
	if queue == "" {
		queue = "notifications"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare RabbitMQ queue: %w", err)
	}
	return &RabbitNotifier{conn: conn, ch: ch, queue: queue}, nil
}

func (n *RabbitNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return n.ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    note.ID,
		Timestamp:    note.CreatedAt,
		Body:         body,
	})
}

// Listen consumes the queue until ctx is done or the connection drops.
func (n *RabbitNotifier) Listen(ctx context.Context, store Store, logger *log.Logger) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()
	msgs, err := ch.Consume(n.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", n.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("notification queue closed")
			}
			if err := deliverNotification(ctx, store, msg.Body); err != nil {
				logger.Printf("dropping notification %s: %v", msg.MessageId, err)
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}

func (n *RabbitNotifier) Close() error {
	n.ch.Close()
	return n.conn.Close()
}

// deliverNotification stores one queued notification. A recipient that no
// longer exists is not an error.
func deliverNotification(ctx context.Context, store Store, body []byte) error {
	var note Notification
	if err := json.Unmarshal(body, &note); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if note.UserID == "" {
		return errors.New("notification has no recipient")
	}
	err := store.AddNotification(ctx, &note)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// notify tells recipientID what actor did, unless they are the same user.
// Failures are logged and never surface to the request.
func (h *Handlers) notify(ctx context.Context, actor *User, recipientID, kind, message, link string) {
	if recipientID == "" || recipientID == actor.ID {
		return
	}
	n := NewNotification(recipientID, actor.Username, kind, message, link)
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.errorLog.Printf("notify %s (%s): %v", recipientID, kind, err)
	}
}

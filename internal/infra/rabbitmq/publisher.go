package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

// StatusSink publishes status-change events to the analysis.status queue
// so sibling services (upload API, frontend gateway) observe terminal
// transitions. Implements port.NotificationSink.
type StatusSink struct {
	pub        *Publisher
	routingKey string
}

func NewStatusSink(pub *Publisher, routingKey string) *StatusSink {
	return &StatusSink{pub: pub, routingKey: routingKey}
}

func (s *StatusSink) Publish(ctx context.Context, ev entity.StatusChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	return s.pub.channel.PublishWithContext(ctx,
		s.pub.exchange,
		s.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
}

// DLQPublisher parks submissions that can never be processed (malformed
// JSON, unknown records) with the reason attached.
type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (d *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return d.pub.channel.PublishWithContext(ctx,
		"",
		d.queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"x-dlq-reason": reason,
			},
		},
	)
}

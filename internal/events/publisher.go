package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"joyrelay/internal/domain"
	"joyrelay/internal/metrics"
)

// Publisher sends an envelope under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// AMQPPublisher publishes envelopes to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger
}

// DialAMQP connects to url and declares exchange as a durable topic exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, exchange: exchange, logger: logger}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.OccurredAt,
		Type:         env.Meta.Type,
		Body:         body,
	}
	if env.Meta.CorrelationID != nil {
		msg.CorrelationId = *env.Meta.CorrelationID
	}

	if err := ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Debug("event published", "key", key, "exchange", p.exchange, "id", env.Meta.ID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

// Forward subscribes pub to every relay event type on b. Each publish gets
// its own timeout; failures are logged and counted, never returned.
func Forward(b domain.EventBus, pub Publisher, timeout time.Duration, logger *slog.Logger) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	handler := func(evt domain.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := pub.Publish(ctx, string(evt.Type), NewEnvelope(evt)); err != nil {
			metrics.Events("failed").Inc()
			logger.Warn("event publish failed", "type", evt.Type, "err", err)
			return
		}
		metrics.Events("ok").Inc()
	}
	for _, t := range []domain.EventType{domain.EventRecordAppended, domain.EventNotifySent} {
		b.On(t, handler)
	}
}

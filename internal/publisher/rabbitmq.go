package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"village_tracker/internal/domain"
)

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// RunMessage is the run summary pushed to the dashboard queue after each
// persisted snapshot.
type RunMessage struct {
	Outcome       domain.Outcome              `json:"outcome"`
	CapturedAt    time.Time                   `json:"captured_at"`
	TotalActive   int                         `json:"total_active"`
	TotalPending  int                         `json:"total_pending"`
	TotalRejected int                         `json:"total_rejected"`
	Rejects       map[domain.RejectReason]int `json:"rejects,omitempty"`
	Delta         domain.Counts               `json:"delta,omitempty"`
	Timestamp     time.Time                   `json:"timestamp"`
}

func (r *RabbitMQ) Publish(ctx context.Context, result *domain.RunResult) error {
	if result.Snapshot == nil {
		return fmt.Errorf("run result has no snapshot")
	}

	msg := RunMessage{
		Outcome:       result.Outcome,
		CapturedAt:    result.Snapshot.CapturedAt,
		TotalActive:   result.Snapshot.TotalActive,
		TotalPending:  result.Snapshot.TotalPending,
		TotalRejected: result.Snapshot.TotalRejected,
		Rejects:       result.Rejects,
		Delta:         result.Delta,
		Timestamp:     time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published run result",
		"outcome", result.Outcome,
		"active", msg.TotalActive,
		"pending", msg.TotalPending,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

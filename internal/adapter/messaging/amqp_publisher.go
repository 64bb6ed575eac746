// Package messaging relays conversation side effects to a message broker.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/port"
)

const routingKeyPrefix = "shopassist."

// ActionEvent is the message body published for each action.
type ActionEvent struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Action    domain.Action `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes every action to a topic exchange under the routing
// key shopassist.<action type>.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *zap.Logger
	now      func() time.Time
}

var _ port.EventPublisher = (*AMQPPublisher)(nil)

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RoutingKey returns the routing key for an action type.
func RoutingKey(t domain.ActionType) string {
	return routingKeyPrefix + string(t)
}

func (p *AMQPPublisher) Publish(ctx context.Context, sessionID string, actions []domain.Action) error {
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}

		event := ActionEvent{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Action:    action,
			Timestamp: p.now(),
		}
		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		key := RoutingKey(action.Type)
		err = p.ch.Publish(
			p.exchange,
			key,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				MessageId:    event.ID,
				Timestamp:    event.Timestamp,
				Headers: amqp.Table{
					"session_id":  sessionID,
					"action_type": string(action.Type),
				},
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}
		p.logger.Debug("event published", zap.String("routing_key", key), zap.String("session_id", sessionID))
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

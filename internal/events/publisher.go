// Package events publishes seat-count changes to RabbitMQ so other services
// (notifications, the browser UI's live view) can follow them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "flight.seats.updated"

// SeatUpdate is the message body published after a seat count is recorded.
type SeatUpdate struct {
	ID             string    `json:"id"`
	FlightKey      string    `json:"flight_key"`
	SeatsAvailable int       `json:"seats_available"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSeatUpdate stamps a fresh event id.
func NewSeatUpdate(flightKey string, seats int, at time.Time) SeatUpdate {
	return SeatUpdate{
		ID:             uuid.NewString(),
		FlightKey:      flightKey,
		SeatsAvailable: seats,
		UpdatedAt:      at.UTC(),
	}
}

// Publisher delivers seat updates.
type Publisher interface {
	PublishSeatUpdate(ctx context.Context, ev SeatUpdate) error
	Close() error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) PublishSeatUpdate(context.Context, SeatUpdate) error { return nil }
func (Noop) Close() error                                        { return nil }

// AMQPPublisher publishes persistent JSON messages to a durable queue on the
// default exchange. The connection is opened lazily and reopened after a
// failure.
type AMQPPublisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPPublisher{url: url, queue: queue}
}

func (p *AMQPPublisher) PublishSeatUpdate(ctx context.Context, ev SeatUpdate) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("publishing seat update: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dialing rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declaring queue %s: %w", p.queue, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func encode(ev SeatUpdate) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encoding seat update: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.UpdatedAt,
		Type:         "seat.updated",
		Body:         body,
	}, nil
}

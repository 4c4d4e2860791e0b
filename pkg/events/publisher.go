package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/pkg/jobs"
)

// TypeScheduleGenerated is the event type of generation summaries.
const TypeScheduleGenerated = "schedule.generated"

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("publisher closed")

// ScheduleGenerated summarises one completed generation. It never carries the
// submitted constraints or the candidates themselves.
type ScheduleGenerated struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RequestID  string    `json:"requestId"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	TermID     string    `json:"termId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Candidates int       `json:"candidates"`
	Truncated  bool      `json:"truncated"`
	Components int       `json:"components"`
	DurationMs int64     `json:"durationMs"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers generation events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event ScheduleGenerated) error
}

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (amqpChannel, io.Closer, error)

// AMQPPublisher publishes events as persistent JSON messages on a durable RabbitMQ queue.
// The connection is opened lazily and re-dialled after a failed publish.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger
	dial   dialFunc

	mu     sync.Mutex
	ch     amqpChannel
	conn   io.Closer
	closed bool
}

// NewAMQPPublisher builds a publisher for the given broker url and queue.
func NewAMQPPublisher(url, queue string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{url: url, queue: queue, logger: logger, dial: dialAMQP}
}

func dialAMQP(url string) (amqpChannel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn, nil
}

// Publish sends the event to the configured queue.
func (p *AMQPPublisher) Publish(ctx context.Context, event ScheduleGenerated) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.connect(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Warn("event publish failed", zap.String("queue", p.queue), zap.String("event_id", event.ID), zap.Error(err))
		p.reset()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}

func (p *AMQPPublisher) connect() error {
	if p.ch != nil {
		return nil
	}
	ch, conn, err := p.dial(p.url)
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.ch, p.conn = ch, conn
	p.logger.Info("event publisher connected", zap.String("queue", p.queue))
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

// QueueHandler adapts a publisher to the background job queue. Jobs carry a
// ScheduleGenerated payload; anything else is dropped.
func QueueHandler(pub Publisher, onResult func(result string)) jobs.Handler {
	if onResult == nil {
		onResult = func(string) {}
	}
	return func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(ScheduleGenerated)
		if !ok {
			onResult("dropped")
			return nil
		}
		if err := pub.Publish(ctx, event); err != nil {
			onResult("failed")
			return err
		}
		onResult("published")
		return nil
	}
}

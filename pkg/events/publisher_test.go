package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/pkg/jobs"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(channels ...*fakeChannel) (*AMQPPublisher, *int) {
	dials := 0
	pub := NewAMQPPublisher("amqp://test", "timetable.schedule.generated", nil)
	pub.dial = func(string) (amqpChannel, io.Closer, error) {
		if dials >= len(channels) {
			return nil, nil, errors.New("broker unreachable")
		}
		ch := channels[dials]
		dials++
		return ch, nil, nil
	}
	return pub, &dials
}

func sampleEvent() ScheduleGenerated {
	return ScheduleGenerated{
		ID:         "evt-1",
		Type:       TypeScheduleGenerated,
		RequestID:  "req-1",
		Mode:       "class",
		Status:     "OK",
		Candidates: 3,
		OccurredAt: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestAMQPPublisherPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	pub, dials := newTestPublisher(ch)

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))

	assert.Equal(t, 1, *dials)
	assert.Equal(t, []string{"timetable.schedule.generated"}, ch.declared)
	require.Len(t, ch.published, 2)
	msg := ch.published[0]
	assert.Equal(t, "timetable.schedule.generated", ch.keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "evt-1", msg.MessageId)
	assert.Equal(t, TypeScheduleGenerated, msg.Type)

	var decoded ScheduleGenerated
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "req-1", decoded.RequestID)
	assert.Equal(t, 3, decoded.Candidates)
}

func TestAMQPPublisherRedialsAfterFailure(t *testing.T) {
	broken := &fakeChannel{publishErr: errors.New("channel closed")}
	healthy := &fakeChannel{}
	pub, dials := newTestPublisher(broken, healthy)

	require.Error(t, pub.Publish(context.Background(), sampleEvent()))
	assert.True(t, broken.closed)

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, 2, *dials)
	assert.Len(t, healthy.published, 1)
}

func TestAMQPPublisherClosed(t *testing.T) {
	pub, _ := newTestPublisher(&fakeChannel{})
	require.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.Publish(context.Background(), sampleEvent()), ErrClosed)
}

type recordingPublisher struct {
	events []ScheduleGenerated
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event ScheduleGenerated) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func TestQueueHandler(t *testing.T) {
	pub := &recordingPublisher{}
	var results []string
	handler := QueueHandler(pub, func(result string) { results = append(results, result) })

	require.NoError(t, handler(context.Background(), jobs.Job{Payload: sampleEvent()}))
	require.NoError(t, handler(context.Background(), jobs.Job{Payload: "not an event"}))

	pub.err = errors.New("down")
	require.Error(t, handler(context.Background(), jobs.Job{Payload: sampleEvent()}))

	assert.Len(t, pub.events, 1)
	assert.Equal(t, []string{"published", "dropped", "failed"}, results)
}

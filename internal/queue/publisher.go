package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher accepts audit events.  Implementations must not block the
// caller on broker I/O.
type Publisher interface {
	Publish(ctx context.Context, ev AuditEvent) error
}

// NopPublisher discards every event.  Used when auditing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuditEvent) error { return nil }

// ErrBufferFull is returned when the publisher cannot keep up with events.
var ErrBufferFull = errors.New("audit buffer full")

// AMQPPublisher queues events in memory and publishes them from Run as
// persistent JSON messages on a durable queue.
type AMQPPublisher struct {
	url    string
	queue  string
	events chan AuditEvent
}

func NewAMQPPublisher(url, queue string, buffer int) *AMQPPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &AMQPPublisher{url: url, queue: queue, events: make(chan AuditEvent, buffer)}
}

// Publish enqueues ev without waiting for the broker.
func (p *AMQPPublisher) Publish(_ context.Context, ev AuditEvent) error {
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// encode builds the AMQP message for ev.
func encode(ev AuditEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ts.UTC(),
		Type:         ev.Action,
		Body:         body,
	}, nil
}

// Run connects to the broker and drains the event buffer until ctx is
// cancelled, reconnecting with exponential backoff.  An event whose publish
// fails is retried once on the next connection and then dropped.
func (p *AMQPPublisher) Run(ctx context.Context) {
	backoff := time.Second
	var pending *AuditEvent
	for ctx.Err() == nil {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit publisher: dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second
		pending, err = p.publishLoop(ctx, conn, pending)
		_ = conn.Close()
		if err != nil {
			log.Warn().Err(err).Msg("audit publisher: reconnecting")
		}
	}
}

func (p *AMQPPublisher) publishLoop(ctx context.Context, conn *amqp.Connection, pending *AuditEvent) (*AuditEvent, error) {
	ch, err := conn.Channel()
	if err != nil {
		return pending, fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return pending, fmt.Errorf("queue declare: %w", err)
	}

	retried := pending != nil
	for {
		var ev AuditEvent
		if pending != nil {
			ev, pending = *pending, nil
		} else {
			select {
			case <-ctx.Done():
				return nil, nil
			case ev = <-p.events:
			}
		}
		msg, err := encode(ev)
		if err != nil {
			log.Error().Err(err).Str("action", ev.Action).Msg("audit publisher: encode failed")
			continue
		}
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ch.PublishWithContext(pubCtx, "", p.queue, false, false, msg)
		cancel()
		if err != nil {
			if retried {
				log.Error().Err(err).Str("action", ev.Action).Msg("audit publisher: event dropped")
				return nil, err
			}
			return &ev, fmt.Errorf("publish: %w", err)
		}
		retried = false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d < 30*time.Second {
		return d * 2
	}
	return d
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

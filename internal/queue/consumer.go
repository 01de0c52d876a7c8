package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AuditLogFile is the file name the consumer appends to inside its log dir.
const AuditLogFile = "audit.log"

// Consumer reads audit events from the queue and appends one line per event
// to <dir>/audit.log.
type Consumer struct {
	url   string
	queue string
	dir   string
}

func NewConsumer(url, queue, dir string) *Consumer {
	return &Consumer{url: url, queue: queue, dir: dir}
}

// Run consumes until ctx is cancelled, reconnecting with backoff whenever
// the broker connection drops.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit consumer: dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second
		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if err != nil {
			log.Warn().Err(err).Msg("audit consumer: reconnecting")
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("audit consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				log.Error().Err(err).Msg("audit consumer: rejecting message")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev AuditEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Action == "" {
		return errors.New("event without action")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// formatLine renders ev as a single human readable line.
func formatLine(ev AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | actor_id=%d", ev.At.UTC().Format(time.RFC3339), ev.Action, ev.ActorID)
	if ev.Actor != "" {
		fmt.Fprintf(&b, " | actor=%q", ev.Actor)
	}
	if ev.TargetType != "" {
		fmt.Fprintf(&b, " | target=%s:%d", ev.TargetType, ev.TargetID)
	}
	if ev.RequestID != "" {
		fmt.Fprintf(&b, " | request_id=%s", ev.RequestID)
	}
	if ev.RemoteIP != "" {
		fmt.Fprintf(&b, " | ip=%s", ev.RemoteIP)
	}
	keys := make([]string, 0, len(ev.Details))
	for k := range ev.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " | %s=%v", k, ev.Details[k])
	}
	b.WriteByte('\n')
	return b.String()
}

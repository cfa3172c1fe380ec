package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditFile is the file under Config.LogDir the consumer appends to.
const AuditFile = "checkin.log"

// AuditConsumer appends one line per domain event to the audit log.  Run
// keeps reconnecting with backoff until its context is cancelled.
type AuditConsumer struct {
	cfg Config
	log *zap.Logger
	mu  sync.Mutex // serialises writes to the audit file
}

// NewAuditConsumer returns an AuditConsumer.
func NewAuditConsumer(cfg Config, log *zap.Logger) *AuditConsumer {
	if log == nil {
		log = zap.L()
	}
	cfg = cfg.withDefaults()
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	return &AuditConsumer{cfg: cfg, log: log.Named("audit-consumer")}
}

// Run consumes ticket.issued and ticket.checked_in until ctx is done.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := dial(c.cfg)
		if err != nil {
			c.log.Warn("dial failed, retrying", zap.Duration("backoff", backoff), zap.Error(err))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}

	issued, err := c.subscribe(ch, TicketIssuedQueue)
	if err != nil {
		return err
	}
	checked, err := c.subscribe(ch, TicketCheckedInQueue)
	if err != nil {
		return err
	}

	for {
		var d amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-issued:
		case d, ok = <-checked:
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.Handle(d.RoutingKey, d.Body); err != nil {
			c.log.Error("handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
			_ = d.Nack(false, false) // do not requeue poison messages
			continue
		}
		_ = d.Ack(false)
	}
}

func (c *AuditConsumer) subscribe(ch *amqp.Channel, name string) (<-chan amqp.Delivery, error) {
	if err := declare(ch, name); err != nil {
		return nil, err
	}
	msgs, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", name, err)
	}
	return msgs, nil
}

// Handle formats one message from queueName and appends it to the audit
// file.
func (c *AuditConsumer) Handle(queueName string, body []byte) error {
	line, err := formatAudit(queueName, body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.cfg.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.cfg.LogDir, AuditFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func formatAudit(queueName string, body []byte) (string, error) {
	switch queueName {
	case TicketIssuedQueue:
		var ev TicketIssuedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Ticket issued | ticket_id=%d | invoice=%s | event_id=%d | form=%q | email=%s | name=%q | qty=%d | issuance=%s | synthetic=%t\n",
			ev.IssuedAt, ev.TicketID, ev.InvoiceNo, ev.EventID, ev.FormID, ev.Email, ev.Name, ev.Quantity, ev.Issuance, ev.Synthetic), nil
	case TicketCheckedInQueue:
		var ev TicketCheckedInEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Checked in | ticket_id=%d | invoice=%s | event_id=%d | name=%q | qty=%d | staff_id=%d\n",
			ev.CheckedInAt, ev.TicketID, ev.InvoiceNo, ev.EventID, ev.Name, ev.Quantity, ev.StaffID), nil
	}
	return "", fmt.Errorf("unknown queue %q", queueName)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

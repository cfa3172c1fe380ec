package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrBufferFull is returned when events arrive faster than the broker
// accepts them.  The event is dropped.
var ErrBufferFull = errors.New("publisher buffer full")

const (
	defaultDialTimeout = 3 * time.Second
	defaultBufferSize  = 1024
)

// Config configures the broker connection.  LogDir is where the audit
// consumer writes checkin.log.
type Config struct {
	Enabled     bool
	URL         string
	LogDir      string
	DialTimeout time.Duration // bounds TCP connect and AMQP handshake
	BufferSize  int           // events queued while the broker is slow
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// dial opens a connection whose connect and handshake are bounded by
// cfg.DialTimeout.
func dial(cfg Config) (*amqp.Connection, error) {
	return amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(cfg.DialTimeout),
	})
}

type outgoing struct {
	queue string
	body  []byte
}

// Publisher publishes domain events.  Publish calls only enqueue; Run
// delivers them over one long-lived connection, so a slow or unreachable
// broker never holds up a request.  A disabled Publisher drops events
// silently.
type Publisher struct {
	cfg     Config
	log     *zap.Logger
	pending chan outgoing

	conn *amqp.Connection // owned by Run
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher.  A nil logger falls back to zap.L().
func NewPublisher(cfg Config, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.L()
	}
	cfg = cfg.withDefaults()
	return &Publisher{cfg: cfg, log: log.Named("publisher"), pending: make(chan outgoing, cfg.BufferSize)}
}

// PublishTicketIssued queues an event for ticket.issued.
func (p *Publisher) PublishTicketIssued(ctx context.Context, ev TicketIssuedEvent) error {
	return p.enqueue(TicketIssuedQueue, ev)
}

// PublishTicketCheckedIn queues an event for ticket.checked_in.
func (p *Publisher) PublishTicketCheckedIn(ctx context.Context, ev TicketCheckedInEvent) error {
	return p.enqueue(TicketCheckedInQueue, ev)
}

func (p *Publisher) enqueue(queueName string, v any) error {
	if !p.cfg.Enabled {
		return nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queueName, err)
	}
	select {
	case p.pending <- outgoing{queue: queueName, body: body}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run delivers queued events until ctx is done.  Delivery is best effort:
// an event that cannot be sent is logged and dropped.
func (p *Publisher) Run(ctx context.Context) {
	defer p.reset()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.pending:
			if err := p.send(ctx, msg); err != nil {
				p.log.Warn("publish failed, event dropped", zap.String("queue", msg.queue), zap.Error(err))
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, msg outgoing) error {
	if p.ch == nil || p.ch.IsClosed() {
		p.reset()
		conn, err := dial(p.cfg)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("channel open: %w", err)
		}
		for _, q := range []string{TicketIssuedQueue, TicketCheckedInQueue} {
			if err := declare(ch, q); err != nil {
				_ = conn.Close()
				return err
			}
		}
		p.conn, p.ch = conn, ch
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         msg.queue,
		Body:         msg.body,
	}
	if err := p.ch.PublishWithContext(ctx, "", msg.queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", msg.queue, err)
	}
	return nil
}

func (p *Publisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// declare makes sure the durable queue exists.
func declare(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", name, err)
	}
	return nil
}

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
	"github.com/Temutjin2k/geo-tracker/pkg/tracing"
)

const (
	DefaultSubject = "tracker.locations"

	brokerName      = "nats"
	traceHeader     = "x-trace-id"
	eventTypeHeader = "x-event-type"
)

// Broker shares relay events between relay instances on a NATS subject
type Broker struct {
	conn    *nats.Conn
	subject string

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool

	l logger.Logger
}

func NewBroker(conn *nats.Conn, subject string, l logger.Logger) *Broker {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Broker{conn: conn, subject: subject, l: l}
}

func (b *Broker) Publish(ctx context.Context, ev models.RelayEvent) error {
	const op = "NatsBroker.Publish"

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed || b.conn == nil {
		return fmt.Errorf("%s: %w", op, types.ErrBrokerClosed)
	}

	msg, err := message(ctx, b.subject, ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = b.conn.PublishMsg(msg)
	metrics.RecordBrokerPublish(brokerName, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Subscribe registers an async subscription; NATS calls handler from one goroutine per subscription.
func (b *Broker) Subscribe(ctx context.Context, handler func(context.Context, models.RelayEvent)) error {
	const op = "NatsBroker.Subscribe"

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.conn == nil {
		return fmt.Errorf("%s: %w", op, types.ErrBrokerClosed)
	}

	ctx = wrap.WithAction(ctx, types.ActionFanOut)

	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		var ev models.RelayEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			metrics.RecordBrokerConsume(brokerName, err)
			b.l.Error(ctx, "decode failed", err, "subject", msg.Subject)
			return
		}
		metrics.RecordBrokerConsume(brokerName, nil)

		handler(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	b.subs = append(b.subs, sub)

	b.l.Info(ctx, "subscribed to location fan-out", "subject", b.subject)
	return nil
}

// Close drains the subscriptions. The connection belongs to the caller.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.subs = nil
	return firstErr
}

func message(ctx context.Context, subject string, ev models.RelayEvent) (*nats.Msg, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	eventType := types.EventReceiveLocation
	if ev.Location == nil {
		eventType = types.EventUserDisconnected
	}

	return &nats.Msg{
		Subject: subject,
		Data:    payload,
		Header: nats.Header{
			traceHeader:     {tracing.TraceIDFromContext(ctx)},
			eventTypeHeader: {eventType.String()},
		},
	}, nil
}

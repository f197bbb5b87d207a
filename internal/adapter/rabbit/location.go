package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
	"github.com/Temutjin2k/geo-tracker/pkg/rabbit"
	"github.com/Temutjin2k/geo-tracker/pkg/tracing"
)

const (
	ExchangeLocationFanout = "location_fanout"

	brokerName     = "rabbitmq"
	traceHeader    = "x-trace-id"
	publishRetries = 3
	publishBackoff = 200 * time.Millisecond
	rebindInterval = 2 * time.Second
)

// LocationBroker shares relay events between relay instances through a fanout exchange.
// Every instance consumes from its own exclusive queue bound to the exchange.
type LocationBroker struct {
	client   *rabbit.RabbitMQ
	exchange string

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	l logger.Logger
}

func NewLocationBroker(client *rabbit.RabbitMQ, exchange string, l logger.Logger) *LocationBroker {
	if exchange == "" {
		exchange = ExchangeLocationFanout
	}

	return &LocationBroker{
		client:   client,
		exchange: exchange,
		done:     make(chan struct{}),
		l:        l,
	}
}

func (b *LocationBroker) Publish(ctx context.Context, ev models.RelayEvent) error {
	const op = "LocationBroker.Publish"

	if b.isClosed() {
		return fmt.Errorf("%s: %w", op, types.ErrBrokerClosed)
	}

	pub, err := publishing(ctx, ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = retry(publishRetries, publishBackoff, func() error {
		if err := b.client.EnsureConnection(ctx); err != nil {
			return err
		}
		ch := b.client.CurrentChannel()
		if ch == nil {
			return types.ErrBrokerClosed
		}
		return ch.PublishWithContext(ctx, b.exchange, "", false, false, pub)
	})
	metrics.RecordBrokerPublish(brokerName, err)
	if err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}

	return nil
}

// Subscribe binds a fresh queue and consumes it on one goroutine until ctx is done or Close is called.
// A lost channel is rebound in the background.
func (b *LocationBroker) Subscribe(ctx context.Context, handler func(context.Context, models.RelayEvent)) error {
	const op = "LocationBroker.Subscribe"

	if b.isClosed() {
		return fmt.Errorf("%s: %w", op, types.ErrBrokerClosed)
	}

	msgs, err := b.bind()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	b.wg.Add(1)
	go b.consume(ctx, msgs, handler)

	return nil
}

// Close stops consuming. The underlying connection belongs to the caller.
func (b *LocationBroker) Close() error {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
	return nil
}

func (b *LocationBroker) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// bind declares the exchange and a server-named exclusive queue and starts consuming it
func (b *LocationBroker) bind() (<-chan amqp.Delivery, error) {
	ch := b.client.CurrentChannel()
	if ch == nil {
		return nil, types.ErrBrokerClosed
	}

	if err := ch.ExchangeDeclare(b.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	// auto-ack: a position is superseded by the next one, redelivery has no value
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return msgs, nil
}

func (b *LocationBroker) consume(ctx context.Context, msgs <-chan amqp.Delivery, handler func(context.Context, models.RelayEvent)) {
	defer b.wg.Done()
	ctx = wrap.WithAction(ctx, types.ActionFanOut)

	b.l.Info(ctx, "start consuming location fan-out", "exchange", b.exchange)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				b.l.Warn(ctx, "message channel closed, rebinding...")
				if msgs = b.rebind(ctx); msgs == nil {
					return
				}
				continue
			}

			b.handle(ctx, msg, handler)
		}
	}
}

// rebind waits for the connection to come back and binds a new queue; nil when stopped
func (b *LocationBroker) rebind(ctx context.Context) <-chan amqp.Delivery {
	for {
		if err := b.client.EnsureConnection(ctx); err != nil {
			b.l.Error(ctx, "ensure connection failed", err)
		} else if msgs, err := b.bind(); err != nil {
			b.l.Error(ctx, "rebind failed", err)
		} else {
			return msgs
		}

		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case <-time.After(rebindInterval):
		}
	}
}

// handle runs on the consume goroutine; handlers see events in queue order
func (b *LocationBroker) handle(ctx context.Context, msg amqp.Delivery, handler func(context.Context, models.RelayEvent)) {
	ev, err := decodeRelayEvent(msg.Body)
	metrics.RecordBrokerConsume(brokerName, err)
	if err != nil {
		b.l.Error(ctx, "decode failed", err)
		return
	}

	if msg.CorrelationId != "" {
		ctx = wrap.WithRequestID(ctx, msg.CorrelationId)
	}
	handler(ctx, ev)
}

func publishing(ctx context.Context, ev models.RelayEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		Timestamp:     time.Now(),
		CorrelationId: wrap.GetRequestID(ctx),
	}
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		pub.Headers = amqp.Table{traceHeader: traceID}
	}

	return pub, nil
}

func decodeRelayEvent(body []byte) (models.RelayEvent, error) {
	var ev models.RelayEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return models.RelayEvent{}, fmt.Errorf("%w: %v", types.ErrInvalidPayload, err)
	}
	if ev.Location == nil && ev.DepartedID == "" {
		return models.RelayEvent{}, fmt.Errorf("%w: empty relay event", types.ErrInvalidPayload)
	}
	return ev, nil
}

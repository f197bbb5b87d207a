package memory

import (
	"context"
	"sync"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
)

const (
	brokerName       = "memory"
	subscriberBuffer = 256
)

type subscriber struct {
	events chan models.RelayEvent
	done   chan struct{}
}

// Broker fans relay events out inside one process.
// Each subscriber has its own queue drained by one goroutine.
type Broker struct {
	mu     sync.Mutex
	subs   []*subscriber
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
}

func NewBroker() *Broker {
	return &Broker{}
}

// Publish queues ev for every subscriber. It blocks while a subscriber queue is full.
func (b *Broker) Publish(ctx context.Context, ev models.RelayEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		metrics.RecordBrokerPublish(brokerName, types.ErrBrokerClosed)
		return types.ErrBrokerClosed
	}
	subs := append([]*subscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.events <- ev:
		case <-sub.done:
		case <-ctx.Done():
			metrics.RecordBrokerPublish(brokerName, ctx.Err())
			return ctx.Err()
		}
	}

	metrics.RecordBrokerPublish(brokerName, nil)
	return nil
}

// Subscribe starts delivering events to handler until ctx is done or the broker is closed
func (b *Broker) Subscribe(ctx context.Context, handler func(context.Context, models.RelayEvent)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return types.ErrBrokerClosed
	}

	sub := &subscriber{
		events: make(chan models.RelayEvent, subscriberBuffer),
		done:   make(chan struct{}),
	}
	b.subs = append(b.subs, sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case ev := <-sub.events:
				metrics.RecordBrokerConsume(brokerName, nil)
				handler(ctx, ev)
			}
		}
	}()

	return nil
}

// Close stops every subscriber and waits for their goroutines
func (b *Broker) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		for _, sub := range b.subs {
			close(sub.done)
		}
		b.subs = nil
		b.mu.Unlock()
	})

	b.wg.Wait()
	return nil
}

package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/domain/entity"
)

var (
	ErrBusClosed          = errors.New("notification bus closed")
	ErrSubscriberExists   = errors.New("subscriber id already registered")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

type subscriber struct {
	id      string
	ch      chan entity.StatusChangeEvent
	dropped uint64
}

// Bus broadcasts status-change events to every connected subscriber.
// Publishing never blocks: a subscriber whose buffer is full misses the
// event (the drop is counted). No replay, no ordering across records,
// at-most-once per subscriber per event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	published   uint64
	closed      bool
	logger      *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
		logger:      logger,
	}
}

// Subscribe registers an observer and returns its event channel. The
// channel is closed on Unsubscribe or Close.
func (b *Bus) Subscribe(id string, buffer int) (<-chan entity.StatusChangeEvent, error) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber{id: id, ch: make(chan entity.StatusChangeEvent, buffer)}
	b.subscribers[id] = sub
	return sub.ch, nil
}

func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	close(sub.ch)
	return nil
}

// Publish implements port.NotificationSink.
func (b *Bus) Publish(_ context.Context, ev entity.StatusChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	atomic.AddUint64(&b.published, 1)

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			n := atomic.AddUint64(&sub.dropped, 1)
			b.logger.Warn("subscriber buffer full, dropping event",
				zap.String("subscriber_id", sub.id),
				zap.String("record_id", ev.RecordID),
				zap.Uint64("dropped_total", n),
			)
		}
	}
	return nil
}

// Dropped returns how many events a subscriber has missed so far.
func (b *Bus) Dropped(id string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return 0, ErrSubscriberNotFound
	}
	return atomic.LoadUint64(&sub.dropped), nil
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}

package event

import (
	"log/slog"
	"sync"
	"time"
)

// stampable is implemented by *BaseEvent; events are published as pointers so
// the bus can assign Seq and Ts.
type stampable interface {
	stamp(seq uint64, ts int64)
}

func (e *BaseEvent) stamp(seq uint64, ts int64) {
	e.Seq = seq
	e.Ts = ts
}

// busSub pairs a subscriber channel with its overflow policy.
type busSub struct {
	ch      chan Event
	durable bool
}

// Bus is a small fan-out publisher for the order-event stream. For ordinary
// subscribers Publish never blocks the trading path: one that falls behind
// loses events (and the drop is logged) rather than stalling execution.
// Durable subscribers instead apply backpressure and see every event.
type Bus struct {
	mu   sync.Mutex
	seq  uint64
	subs []busSub
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener with the given buffer size. A listener that
// stops draining loses events.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	return b.subscribe(buffer, false)
}

// SubscribeDurable registers a listener that must see every event, e.g. the
// journal. Publish blocks when its buffer is full instead of dropping, so the
// subscriber must keep draining until the bus closes.
func (b *Bus) SubscribeDurable(buffer int) <-chan Event {
	return b.subscribe(buffer, true)
}

func (b *Bus) subscribe(buffer int, durable bool) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, busSub{ch: ch, durable: durable})
	return ch
}

// Publish stamps the event with a sequence number and timestamp and fans it
// out to all subscribers. Events must be passed as pointers. Delivery happens
// under the bus lock, so a blocking durable send also serializes against
// Close: channels are never closed with a send in flight.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	if s, ok := ev.(stampable); ok {
		s.stamp(b.seq, time.Now().UnixMicro())
	}

	for _, sub := range b.subs {
		if sub.durable {
			sub.ch <- ev
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("Event dropped for slow subscriber",
				slog.Uint64("seq", b.seq), slog.Int("type", int(ev.GetType())))
		}
	}
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

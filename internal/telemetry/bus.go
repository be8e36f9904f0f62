package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// Event names published by the engine
const (
	NotificationProcessed = "notification-processed"
	DeliveryUpdated       = "delivery-updated"
	ChannelHealthChanged  = "channel-health-changed"
)

// Event is a lifecycle signal delivered to listeners
type Event struct {
	Name string
	Time time.Time
	Data any
}

// Listener receives events it subscribed to
type Listener func(Event)

type subscription struct {
	id uint64
	fn Listener
}

// Bus is a publish/subscribe registry keyed by event name.
// Listeners of one name are invoked synchronously in subscription order.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]subscription
	seq       atomic.Uint64
	now       func() time.Time
	log       *logger.Logger
}

// NewBus creates an empty bus
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bus{
		listeners: make(map[string][]subscription),
		now:       time.Now,
		log:       log,
	}
}

// Subscribe registers fn for name and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (b *Bus) Subscribe(name string, fn Listener) (unsubscribe func()) {
	id := b.seq.Add(1)

	b.mu.Lock()
	b.listeners[name] = append(b.listeners[name], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[name]
	for i, s := range subs {
		if s.id == id {
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.listeners, name)
			} else {
				b.listeners[name] = next
			}
			return
		}
	}
}

// Publish delivers data to every listener of name.
// A panicking listener is logged and does not stop the others.
func (b *Bus) Publish(name string, data any) {
	b.mu.RLock()
	subs := b.listeners[name]
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	e := Event{Name: name, Time: b.now(), Data: data}
	for _, s := range subs {
		b.invoke(s.fn, e)
	}
}

func (b *Bus) invoke(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Telemetry listener panicked", "event", e.Name, "panic", r)
		}
	}()
	fn(e)
}

// ListenerCount returns the number of listeners registered for name
func (b *Bus) ListenerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}

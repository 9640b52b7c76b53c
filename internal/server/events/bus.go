package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Emitter is a function that receives events from the stores.
type Emitter func(Event)

// subscriber is one fan-out target with an optional type filter.
type subscriber struct {
	id    string
	types map[string]bool // nil matches everything
	ch    chan Event
}

// Bus delivers events to subscribers without blocking the emitting store.
type Bus struct {
	log       *slog.Logger
	eventChan chan Event
	subs      map[string]*subscriber
	mu        sync.RWMutex
	wg        sync.WaitGroup
	closed    bool
}

// NewBus creates an event bus. Call Start before emitting.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:       log,
		eventChan: make(chan Event, 1000), // buffered to avoid blocking writes
		subs:      make(map[string]*subscriber),
	}
}

// Start begins the delivery loop.
func (b *Bus) Start() {
	b.wg.Add(1)
	go b.process()
}

// Stop drains the queue and closes every subscriber channel.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.eventChan)
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Emit queues an event for delivery. Full queues drop rather than block.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	select {
	case b.eventChan <- ev:
	default:
		b.log.Warn("event queue full, dropping event", "id", ev.ID, "type", ev.Type)
	}
}

// Emitter returns a function the stores can call to publish events.
func (b *Bus) Emitter() Emitter {
	return b.Emit
}

// Subscribe registers a listener for the given event types. An empty type
// list matches every event. The returned cancel function removes the
// subscription and closes the channel.
func (b *Bus) Subscribe(types ...string) (<-chan Event, func()) {
	sub := &subscriber{
		id: uuid.New().String(),
		ch: make(chan Event, 64),
	}
	if len(types) > 0 {
		sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[sub.id]; ok {
			close(s.ch)
			delete(b.subs, sub.id)
		}
	}
	return sub.ch, cancel
}

func (b *Bus) process() {
	defer b.wg.Done()

	for ev := range b.eventChan {
		b.deliver(ev)
	}
}

func (b *Bus) deliver(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.types != nil && !sub.types[ev.Type] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.log.Warn("subscriber queue full, dropping event", "subscriber", sub.id, "type", ev.Type)
		}
	}
}

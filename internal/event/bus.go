// Package event is the synchronous publish/subscribe bus systems use to
// signal each other within a tick.
//
// Publish calls every handler subscribed to the event's kind, in subscription
// order, and returns when the last one has returned. Handlers may subscribe or
// unsubscribe at any time, including while being dispatched to: a dispatch
// works on the subscriber list as it was when Publish started, so changes
// take effect from the next Publish.
package event

// Handler receives a published event.
type Handler func(Event)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	kind Kind
	id   uint64
}

// Kind returns the event kind the subscription listens to.
func (s Subscription) Kind() Kind { return s.kind }

type entry struct {
	id      uint64
	handler Handler
}

// Bus is an event bus. The zero value is not usable; call NewBus.
// A Bus is owned by a single simulation and is not safe for concurrent use.
type Bus struct {
	subs   map[Kind][]entry
	nextID uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]entry)}
}

// Subscribe registers h for events of kind k.
func (b *Bus) Subscribe(k Kind, h Handler) Subscription {
	b.nextID++
	b.subs[k] = append(b.subs[k], entry{id: b.nextID, handler: h})
	return Subscription{kind: k, id: b.nextID}
}

// Unsubscribe removes a subscription. It reports false if it was already gone.
func (b *Bus) Unsubscribe(s Subscription) bool {
	list := b.subs[s.kind]
	for i, e := range list {
		if e.id != s.id {
			continue
		}
		// Copy rather than shift in place: an in-flight dispatch may still
		// be iterating the old backing array.
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, s.kind)
		} else {
			b.subs[s.kind] = next
		}
		return true
	}
	return false
}

// Publish dispatches ev to a snapshot of the current subscribers of its kind.
func (b *Bus) Publish(ev Event) {
	list := b.subs[ev.Kind()]
	if len(list) == 0 {
		return
	}
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	for _, e := range snapshot {
		e.handler(ev)
	}
}

// Subscribers returns the number of handlers registered for k.
func (b *Bus) Subscribers(k Kind) int {
	return len(b.subs[k])
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.subs = make(map[Kind][]entry)
}

// Listener groups the subscriptions of one owner so they can be released
// together.
type Listener struct {
	bus  *Bus
	subs []Subscription
}

// NewListener creates a listener scope on b.
func NewListener(b *Bus) *Listener {
	return &Listener{bus: b}
}

// Subscribe registers h through the listener.
func (l *Listener) Subscribe(k Kind, h Handler) Subscription {
	s := l.bus.Subscribe(k, h)
	l.subs = append(l.subs, s)
	return s
}

// Active returns how many subscriptions the listener holds.
func (l *Listener) Active() int {
	return len(l.subs)
}

// UnsubscribeAll releases every subscription made through the listener.
func (l *Listener) UnsubscribeAll() {
	for _, s := range l.subs {
		l.bus.Unsubscribe(s)
	}
	l.subs = nil
}

// On subscribes a handler typed on the concrete event struct.
func On[T Event](l *Listener, fn func(T)) Subscription {
	var zero T
	return l.Subscribe(zero.Kind(), func(ev Event) {
		if t, ok := ev.(T); ok {
			fn(t)
		}
	})
}

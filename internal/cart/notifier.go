package cart

import (
	"sync"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

// EventKind names a cart broadcast.
type EventKind string

const (
	// EventRestored carries a cart restored from the remote snapshot.
	EventRestored EventKind = "cart-restored"
	// EventCleared asks observers to drop the cart.
	EventCleared EventKind = "cart-cleared"
)

// Event is delivered to every subscribed observer.
type Event struct {
	Kind EventKind
	Cart domain.Cart
}

// Notifier fans cart events out to observers synchronously, in subscription order.
type Notifier struct {
	mu        sync.Mutex
	nextID    int
	observers []observer
}

type observer struct {
	id int
	fn func(Event)
}

// NewNotifier returns a notifier with no observers.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn and returns a func removing it.
func (n *Notifier) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.observers = append(n.observers, observer{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, obs := range n.observers {
				if obs.id == id {
					n.observers = append(n.observers[:i], n.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Broadcast delivers event to every observer before returning.
// Observers are invoked without the notifier lock held.
func (n *Notifier) Broadcast(event Event) {
	n.mu.Lock()
	targets := make([]func(Event), len(n.observers))
	for i, obs := range n.observers {
		targets[i] = obs.fn
	}
	n.mu.Unlock()

	for _, fn := range targets {
		fn(Event{Kind: event.Kind, Cart: event.Cart.Clone()})
	}
}

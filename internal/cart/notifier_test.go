package cart

import (
	"testing"

	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
)

func TestNotifierDeliversInOrder(t *testing.T) {
	n := NewNotifier()
	var got []string
	n.Subscribe(func(e Event) { got = append(got, "first:"+string(e.Kind)) })
	unsub := n.Subscribe(func(e Event) { got = append(got, "second:"+string(e.Kind)) })

	n.Broadcast(Event{Kind: EventCleared})
	unsub()
	unsub()
	n.Broadcast(Event{Kind: EventRestored, Cart: domain.Cart{Total: 1}})

	want := []string{"first:cart-cleared", "second:cart-cleared", "first:cart-restored"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNotifierObserverMaySubscribeDuringBroadcast(t *testing.T) {
	n := NewNotifier()
	calls := 0
	n.Subscribe(func(Event) {
		calls++
		n.Subscribe(func(Event) {})
	})
	n.Broadcast(Event{Kind: EventCleared})
	if calls != 1 {
		t.Fatalf("expected single delivery, got %d", calls)
	}
}

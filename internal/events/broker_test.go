package events

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	rid := "r1"
	ch := b.Subscribe(rid)

	evt := Event{Type: TypeGeneration, RunID: rid, Data: map[string]any{"generation": 1}}
	b.Publish(rid, evt)
	b.Publish("other", Event{Type: TypeFailed})

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["generation"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(rid, ch)
	b.Unsubscribe(rid, ch) // second call is a no-op
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if b.Subscribers(rid) != 0 {
		t.Fatalf("subscribers: %d", b.Subscribers(rid))
	}
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r")
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish("r", Event{Type: TypeGeneration})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered %d of %d", len(ch), cap(ch))
	}
}

func TestTerminal(t *testing.T) {
	for typ, want := range map[string]bool{TypeGeneration: false, TypeCompleted: true, TypeFailed: true, TypeCancelled: true} {
		if (Event{Type: typ}).Terminal() != want {
			t.Fatalf("%s: terminal != %v", typ, want)
		}
	}
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	defer b.Close()

	ch := b.Subscribe("r2")
	b.Publish("r2", Event{Type: TypeCompleted, RunID: "r2", Data: map[string]any{"cost": 42.5}})

	select {
	case got := <-ch:
		if got.Type != TypeCompleted || got.RunID != "r2" {
			t.Fatalf("event: %+v", got)
		}
		if got.Data["cost"].(float64) != 42.5 {
			t.Fatalf("payload: %+v", got.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}
	b.Unsubscribe("r2", ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestBrokerTerminalEventEvictsOldest(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r")
	for i := 0; i < 100; i++ {
		b.Publish("r", Event{Type: TypeGeneration, Data: map[string]any{"generation": i}})
	}
	b.Publish("r", Event{Type: TypeCompleted})
	if len(ch) != cap(ch) {
		t.Fatalf("buffered %d of %d", len(ch), cap(ch))
	}
	var last Event
	for len(ch) > 0 {
		last = <-ch
	}
	if !last.Terminal() {
		t.Fatalf("last buffered event = %+v, want terminal", last)
	}
}

func TestRedisBrokerTerminalAfterBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	defer b.Close()

	ch := b.Subscribe("r3")
	for i := 0; i < 100; i++ {
		b.Publish("r3", Event{Type: TypeGeneration, RunID: "r3"})
	}
	b.Publish("r3", Event{Type: TypeFailed, RunID: "r3"})

	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-ch:
			if got.Terminal() {
				return
			}
		case <-deadline:
			t.Fatal("terminal event never delivered")
		}
	}
}

package events

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func newTestBus() *Bus {
	return NewBus(zerolog.New(io.Discard))
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := newTestBus()

	var count atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe(TopicNoteFinalized, func(ctx context.Context, evt Event) {
			count.Add(1)
		})
	}

	bus.Publish(Event{Topic: TopicNoteFinalized, Payload: "p"})
	bus.Wait()

	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 deliveries, got %d", got)
	}
}

func TestPublishIgnoresUnsubscribedTopic(t *testing.T) {
	bus := newTestBus()
	bus.Publish(Event{Topic: "nobody.listens"})
	bus.Wait()
}

func TestPanickingHandlerDoesNotAffectOthers(t *testing.T) {
	bus := newTestBus()

	var delivered atomic.Bool
	bus.Subscribe(TopicMessageSent, func(ctx context.Context, evt Event) {
		panic("subscriber bug")
	})
	bus.Subscribe(TopicMessageSent, func(ctx context.Context, evt Event) {
		delivered.Store(true)
	})

	bus.Publish(Event{Topic: TopicMessageSent})
	bus.Wait()

	if !delivered.Load() {
		t.Error("healthy subscriber should still receive the event")
	}
}

func TestPayloadPassedThrough(t *testing.T) {
	bus := newTestBus()

	type finalized struct{ NoteID string }
	got := make(chan finalized, 1)
	bus.Subscribe(TopicNoteFinalized, func(ctx context.Context, evt Event) {
		got <- evt.Payload.(finalized)
	})

	bus.Publish(Event{Topic: TopicNoteFinalized, Payload: finalized{NoteID: "n1"}})
	bus.Wait()

	if p := <-got; p.NoteID != "n1" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

// Package events provides the in-process domain event bus. Publishing is
// fire-and-forget: subscribers run on their own goroutines after the primary
// write has succeeded, and a failing subscriber never affects the HTTP
// response. Delivery is at-most-once.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Event topics published by the domain services.
const (
	TopicNoteFinalized      = "note.finalized"
	TopicAppointmentDecline = "appointment.declined"
	TopicMessageSent        = "message.sent"
	TopicLinkApproved       = "link.approved"
)

// Event is a published domain event. Payload is a topic-specific struct.
type Event struct {
	Topic   string
	Payload interface{}
}

// Handler consumes one event. The context is detached from the originating
// request so a handler outlives the HTTP response.
type Handler func(ctx context.Context, evt Event)

// Bus is an in-process publish/subscribe dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger.With().Str("component", "event-bus").Logger(),
	}
}

// Subscribe registers a handler for a topic. Subscriptions are expected to be
// set up at boot, before traffic is served.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish dispatches the event to every subscriber of its topic, each on its
// own goroutine. Panics in handlers are recovered and logged; they never
// reach the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := b.handlers[evt.Topic]
	b.mu.RUnlock()

	for _, h := range subs {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().
						Str("topic", evt.Topic).
						Interface("panic", r).
						Msg("event handler panicked")
				}
			}()
			h(context.Background(), evt)
		}()
	}
}

// Wait blocks until all in-flight handlers finish. Used on shutdown and in
// tests.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Package telemetry records session transitions and answers as
// fire-and-forget events: recording never blocks or fails the operation
// that produced the event.
package telemetry

import (
	"context"
	"log"
	"time"

	"puzzle-quiz-service/internal/domain"
)

// Event is one observed fact about a session.
type Event struct {
	Kind    string        `json:"kind"` // NewUser, Answer, Hint, Reset, SetLevel, Broadcast, ...
	Chat    domain.ChatID `json:"chat"`
	Game    string        `json:"game"`
	Level   int           `json:"level"`
	Answer  string        `json:"answer,omitempty"`
	Verdict string        `json:"verdict,omitempty"`
	At      time.Time     `json:"at"`
}

// Sink accepts events. Implementations must not block the caller.
type Sink interface {
	Record(event Event)
}

// Writer is the blocking backend an async sink drains into.
type Writer interface {
	Write(ctx context.Context, event Event) error
}

// Async buffers events in a channel and writes them on its own
// goroutine. When the buffer is full the event is dropped, never queued
// synchronously.
type Async struct {
	ch     chan Event
	writer Writer
}

func NewAsync(writer Writer, buffer int) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	return &Async{ch: make(chan Event, buffer), writer: writer}
}

// Record enqueues the event or drops it when the buffer is full.
func (a *Async) Record(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case a.ch <- event:
	default:
		log.Printf("telemetry: buffer full, dropping %s event", event.Kind)
	}
}

// Run drains the buffer until the context is cancelled; remaining
// buffered events are flushed before returning.
func (a *Async) Run(ctx context.Context) {
	for {
		select {
		case event := <-a.ch:
			a.write(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-a.ch:
					a.write(event)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.writer.Write(ctx, event); err != nil {
		log.Printf("telemetry: writing %s event: %v", event.Kind, err)
	}
}

// Nop discards all events; used when no telemetry backend is configured.
type Nop struct{}

func (Nop) Record(Event) {}

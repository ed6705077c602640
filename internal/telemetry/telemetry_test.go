package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"
)

type collectingWriter struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (w *collectingWriter) Write(_ context.Context, event Event) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	return nil
}

func (w *collectingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func TestAsyncDeliversAndFlushesOnShutdown(t *testing.T) {
	writer := &collectingWriter{}
	sink := NewAsync(writer, 16)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	sink.Record(Event{Kind: "Answer", Chat: 1, Game: "g", Verdict: "correct"})
	sink.Record(Event{Kind: "Hint", Chat: 1, Game: "g"})

	deadline := time.After(2 * time.Second)
	for writer.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("events not delivered, got %d", writer.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestAsyncRecordNeverBlocks(t *testing.T) {
	writer := &collectingWriter{block: make(chan struct{})}
	sink := NewAsync(writer, 1)

	done := make(chan struct{})
	go func() {
		// Overfill the buffer; every call must return immediately.
		for i := 0; i < 100; i++ {
			sink.Record(Event{Kind: "Answer"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked on a full buffer")
	}
	close(writer.block)
}

func TestRecordStampsTime(t *testing.T) {
	sink := NewAsync(&collectingWriter{}, 4)
	sink.Record(Event{Kind: "Answer"})
	event := <-sink.ch
	if event.At.IsZero() {
		t.Fatalf("expected timestamp to be stamped")
	}
}

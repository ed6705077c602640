package quiz

import (
	"context"
	"log"

	"puzzle-quiz-service/internal/domain"
)

// SpoilerBuffer collects the message handles of the current level's turns
// so they can be retracted once the level is solved. Recording is gated
// on the no-spoiler flag; draining is not, so toggling the flag mid-level
// still clears what was recorded.
type SpoilerBuffer struct {
	Enabled bool
	refs    []domain.MessageRef
}

// Record appends a handle while no-spoiler mode is on.
func (b *SpoilerBuffer) Record(refs ...domain.MessageRef) {
	if !b.Enabled {
		return
	}
	b.refs = append(b.refs, refs...)
}

// Len reports the number of pending handles.
func (b *SpoilerBuffer) Len() int { return len(b.refs) }

// Drain deletes every recorded handle best-effort and clears the buffer
// unconditionally. A message the user already deleted is logged, not
// fatal. Callers must drain before recording the next question's
// messages, or the new question would be retracted with the old one.
func (b *SpoilerBuffer) Drain(ctx context.Context, deleter Deleter) {
	for _, ref := range b.refs {
		if err := deleter.Delete(ctx, ref); err != nil {
			log.Printf("spoiler: delete message %d in chat %d: %v", ref.MessageID, ref.Chat, err)
		}
	}
	b.refs = b.refs[:0]
}

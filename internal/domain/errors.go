package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrGameNotFound indicates the game directory does not exist.
	ErrGameNotFound = errors.New("game not found")
	// ErrLevelNotFound indicates a level index points outside the game.
	ErrLevelNotFound = errors.New("level not found")
	// ErrNoLevels indicates a game directory with no published levels.
	ErrNoLevels = errors.New("game has no levels")
	// ErrSessionNotFound is returned when a chat acts before /start.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrEmptyAnswer is returned for an answer submission with no text.
	ErrEmptyAnswer = errors.New("empty answer text")
	// ErrRecipientGone signals a recipient that can no longer be reached
	// (left the chat, blocked the bot). The recipient gets deregistered.
	ErrRecipientGone = errors.New("recipient unreachable")
)

// ChatMigratedError reports that a chat identity changed upstream; the
// session must be rekeyed to the new identity.
type ChatMigratedError struct {
	NewChat ChatID
}

func (e *ChatMigratedError) Error() string {
	return fmt.Sprintf("chat migrated to %d", e.NewChat)
}

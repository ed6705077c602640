// Package registry maps (chat, game) pairs to live quiz sessions. It is
// shared across all chat handlers: reads are concurrent, structural
// writes (creation, migration, eviction) take the write lock. Session
// mutation itself stays single-writer per chat.
package registry

import (
	"log"
	"sync"

	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/game"
	"puzzle-quiz-service/internal/quiz"
)

// Entry is one registered session with its chat-scoped companions.
type Entry struct {
	Key     domain.SessionKey
	Session *quiz.Session
	Spoiler *quiz.SpoilerBuffer
	// DailyOptIn marks the chat as a daily-puzzle recipient.
	DailyOptIn bool
	// AnswerFromText accepts plain messages as answers, not only the
	// answer command.
	AnswerFromText bool
}

// Registry lazily creates and tracks sessions.
type Registry struct {
	games *game.ConfigRepository

	mu       sync.RWMutex
	sessions map[domain.SessionKey]*Entry
}

func New(games *game.ConfigRepository) *Registry {
	return &Registry{
		games:    games,
		sessions: make(map[domain.SessionKey]*Entry),
	}
}

// GetOrCreate resolves the session for a key, creating it at level 0 with
// the game's defaults on first contact. The second return value reports
// creation, so the transport can emit the game's welcome exactly once.
// When the game's version tag changed since the session was built, the
// session is rebuilt from its serialized pointer — migration happens on
// read, not in bulk.
func (r *Registry) GetOrCreate(key domain.SessionKey) (*Entry, bool, error) {
	r.mu.RLock()
	entry, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		if err := r.migrateVersion(entry); err != nil {
			return nil, false, err
		}
		return entry, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[key]; ok {
		return entry, false, nil
	}

	cfg, err := r.games.Get(key.Game)
	if err != nil {
		return nil, false, err
	}
	session, err := quiz.NewSession(r.games.Dir(key.Game), cfg, 0)
	if err != nil {
		return nil, false, err
	}
	entry = &Entry{
		Key:            key,
		Session:        session,
		Spoiler:        &quiz.SpoilerBuffer{Enabled: cfg.NoSpoilerDefault},
		DailyOptIn:     true,
		AnswerFromText: true,
	}
	r.sessions[key] = entry
	return entry, true, nil
}

// migrateVersion rebuilds a session whose game config version tag moved
// on, preserving the level pointer.
func (r *Registry) migrateVersion(entry *Entry) error {
	cfg, err := r.games.Get(entry.Key.Game)
	if err != nil {
		return err
	}
	if cfg.Version == entry.Session.Version() {
		return nil
	}
	dir, index := entry.Session.Serialize()
	rebuilt, err := quiz.NewSession(dir, cfg, index)
	if err != nil {
		return err
	}
	log.Printf("registry: rebuilt session %s for version %q", entry.Key, cfg.Version)
	entry.Session = rebuilt
	return nil
}

// Get returns an existing session without creating one.
func (r *Registry) Get(key domain.SessionKey) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[key]
	return entry, ok
}

// Migrate rekeys every session of a chat to its new identity, keeping
// all progress. Triggered by a transport-level chat change notification.
func (r *Registry) Migrate(oldChat, newChat domain.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.sessions {
		if key.Chat != oldChat {
			continue
		}
		newKey := domain.SessionKey{Chat: newChat, Game: key.Game}
		entry.Key = newKey
		r.sessions[newKey] = entry
		delete(r.sessions, key)
	}
	log.Printf("registry: chat %d migrated to %d", oldChat, newChat)
}

// Deregister drops every session of a chat, used when the recipient is
// gone for good.
func (r *Registry) Deregister(chat domain.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.sessions {
		if key.Chat == chat {
			delete(r.sessions, key)
		}
	}
}

// ListAll snapshots the registered entries for broadcast fan-out.
func (r *Registry) ListAll() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.sessions))
	for _, entry := range r.sessions {
		out = append(out, entry)
	}
	return out
}

// Package quiz implements the per-chat quiz session state machine: the
// current-level pointer, answer classification, hint/answer disclosure
// and level navigation.
package quiz

import (
	"context"
	"log"
	"math/rand"
	"strings"

	"puzzle-quiz-service/internal/answers"
	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/levels"
)

const (
	noHintReply    = "There is no hint for this puzzle"
	noRevealReply  = "Answers cannot be revealed in this game"
	endLevelMarker = "The End"
)

// Sender delivers a question to a recipient and returns handles for later
// retraction. Implemented by the messaging transport.
type Sender interface {
	Send(ctx context.Context, chat domain.ChatID, q domain.Question, levelPath string) ([]domain.MessageRef, error)
}

// Deleter retracts a previously delivered message. Idempotent: deleting a
// message the user already removed is not an error worth surfacing.
type Deleter interface {
	Delete(ctx context.Context, ref domain.MessageRef) error
}

// Session owns the progression state of one chat playing one game.
// Operations are single-writer: the hosting runtime serializes events per
// chat, so the session itself carries no lock.
type Session struct {
	store   *levels.Store
	cfg     domain.GameConfig
	current int
	answers domain.AnswerSet
	randInt func(n int) int
}

// NewSession opens the game directory and positions the session at the
// given level, clamped into range. Missing game content is a fatal
// configuration error surfaced here, not retried later.
func NewSession(gameDir string, cfg domain.GameConfig, startAt int) (*Session, error) {
	store, err := levels.NewStore(gameDir)
	if err != nil {
		return nil, err
	}
	s := &Session{
		store:   store,
		cfg:     cfg,
		current: startAt,
		randInt: rand.Intn,
	}
	if s.current < 0 {
		s.current = 0
	}
	if _, _, _, err := s.Question(); err != nil {
		return nil, err
	}
	return s, nil
}

// Question re-reads the current level's content and answer set, so edits
// to level artifacts between calls are picked up live. The refreshed
// answer set backs subsequent Check calls.
func (s *Session) Question() (domain.Question, string, domain.Level, error) {
	all, err := s.store.List()
	if err != nil {
		return domain.Question{}, "", domain.Level{}, err
	}
	if s.current >= len(all) {
		s.current = len(all) - 1
	}
	q, set, path, err := s.store.Load(s.current)
	if err != nil {
		return domain.Question{}, "", domain.Level{}, err
	}
	s.answers = set
	return q, path, all[s.current], nil
}

// Check classifies a submitted answer against the cached answer set.
func (s *Session) Check(text string) domain.CheckResult {
	return answers.Check(s.answers, text)
}

// Next advances the pointer: a uniformly random level under the random
// policy, one step forward otherwise, clamped to the last level. The last
// level is a terminal, repeatable state.
func (s *Session) Next() {
	all, err := s.store.List()
	if err != nil {
		log.Printf("next: listing levels: %v", err)
		return
	}
	if s.cfg.RandomLevels {
		s.current = s.randInt(len(all))
	} else {
		s.current++
	}
	if s.current >= len(all) {
		s.current = len(all) - 1
	}
}

// Hint returns the level's hints joined and sentence-capitalized, or the
// no-hint sentinel. Asking for a hint where none exists is a normal
// response, not an error.
func (s *Session) Hint() string {
	last := s.answers.Hints[len(s.answers.Hints)-1]
	if last == "" {
		return noHintReply
	}
	return answers.CapitalizeSentences(strings.Join(s.answers.Hints, ","))
}

// Answer reveals the first exact answer when the game allows it.
func (s *Session) Answer() string {
	if !s.cfg.AllowGetAnswer {
		return noRevealReply
	}
	return answers.CapitalizeSentences(s.answers.Exact[0])
}

// Levels returns the jump targets at the configured stride, or nil when
// level jumping is disabled for this game. The end marker level is not a
// jump target.
func (s *Session) Levels() []domain.Level {
	if s.cfg.ChangeLevelStep <= 0 {
		return nil
	}
	all, err := s.store.List()
	if err != nil {
		log.Printf("levels: listing levels: %v", err)
		return nil
	}
	var out []domain.Level
	for i := 0; i < len(all); i += s.cfg.ChangeLevelStep {
		if strings.Contains(all[i].Name, endLevelMarker) {
			continue
		}
		out = append(out, all[i])
	}
	return out
}

// SetLevel jumps straight to an index. Out-of-range values are a logged
// no-op, never a crash.
func (s *Session) SetLevel(index int) {
	all, err := s.store.List()
	if err != nil {
		log.Printf("set level: listing levels: %v", err)
		return
	}
	if index < 0 || index >= len(all) {
		log.Printf("set level: index %d out of range [0,%d)", index, len(all))
		return
	}
	s.current = index
}

// SetLevelByName jumps to the level with the given directory name.
func (s *Session) SetLevelByName(dir string) {
	all, err := s.store.List()
	if err != nil {
		log.Printf("set level: listing levels: %v", err)
		return
	}
	for _, lvl := range all {
		if lvl.Dir == dir {
			s.current = lvl.Index
			return
		}
	}
	log.Printf("set level: no such level %q", dir)
}

// Reset moves the pointer back to the first level.
func (s *Session) Reset() {
	s.current = 0
}

// Current returns the current level pointer.
func (s *Session) Current() int { return s.current }

// Version is the game's config version tag cached at construction; the
// registry compares it to decide on migration.
func (s *Session) Version() string { return s.cfg.Version }

// Config exposes the per-game settings the session was built with.
func (s *Session) Config() domain.GameConfig { return s.cfg }

// Serialize returns the state needed to rebuild the session later: the
// game directory and the level pointer.
func (s *Session) Serialize() (string, int) {
	return s.store.Dir(), s.current
}

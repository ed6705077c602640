// Package broadcast runs the shared daily puzzle: one singleton session
// advanced once per day and fanned out to every opted-in chat, with the
// previous day's messages retracted first.
package broadcast

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/quiz"
	"puzzle-quiz-service/internal/registry"
)

// fanOutLimit bounds concurrent deliveries so one slow recipient does
// not serialize the rest of the cycle.
const fanOutLimit = 8

// State is what survives a restart: the shared level pointer and the
// outstanding messages of the last cycle, still pending retraction.
type State struct {
	Level    int                 `json:"level"`
	Messages []domain.MessageRef `json:"messages"`
}

// StateStore persists broadcast state across restarts.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Recipients is the registry surface the fan-out needs.
type Recipients interface {
	ListAll() []*registry.Entry
	Deregister(chat domain.ChatID)
	Migrate(oldChat, newChat domain.ChatID)
}

// Scheduler owns the singleton daily session and its delivery cycle.
type Scheduler struct {
	sender     quiz.Sender
	deleter    quiz.Deleter
	store      StateStore
	recipients Recipients
	at         string // time of day, "15:04"
	clock      func() time.Time

	mu          sync.Mutex
	kernel      *quiz.Session
	outstanding []domain.MessageRef
}

// New restores the scheduler from persisted state. The kernel is the
// shared session for the daily game; its pointer is moved to the stored
// level.
func New(kernel *quiz.Session, sender quiz.Sender, deleter quiz.Deleter, store StateStore, recipients Recipients, at string) (*Scheduler, error) {
	if _, err := time.Parse("15:04", at); err != nil {
		return nil, err
	}
	state, err := store.Load(context.Background())
	if err != nil {
		return nil, err
	}
	kernel.SetLevel(state.Level)
	return &Scheduler{
		sender:      sender,
		deleter:     deleter,
		store:       store,
		recipients:  recipients,
		at:          at,
		clock:       time.Now,
		kernel:      kernel,
		outstanding: state.Messages,
	}, nil
}

// RunDaily fires one cycle at the configured time of day until the
// context is cancelled. State is persisted before cancellation is
// acknowledged, so a restart neither re-broadcasts nor loses the ability
// to retract.
func (s *Scheduler) RunDaily(ctx context.Context) {
	for {
		wait := s.untilNextTick(s.clock())
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			s.Cycle(ctx)
		case <-ctx.Done():
			timer.Stop()
			if err := s.persist(context.Background()); err != nil {
				log.Printf("broadcast: persisting state on shutdown: %v", err)
			}
			return
		}
	}
}

// untilNextTick returns the duration to the next occurrence of the
// configured time of day.
func (s *Scheduler) untilNextTick(now time.Time) time.Duration {
	at, _ := time.Parse("15:04", s.at)
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// Cycle retracts the previous puzzle, advances the shared pointer exactly
// once, and fans the new puzzle out. Delivery failures never abort the
// cycle: an unreachable recipient is deregistered, a migrated chat is
// redirected within the same cycle.
func (s *Scheduler) Cycle(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ref := range s.outstanding {
		if err := s.deleter.Delete(ctx, ref); err != nil {
			log.Printf("broadcast: retract message %d in chat %d: %v", ref.MessageID, ref.Chat, err)
		}
	}
	s.outstanding = s.outstanding[:0]

	s.kernel.Next()
	question, path, _, err := s.kernel.Question()
	if err != nil {
		log.Printf("broadcast: loading daily puzzle: %v", err)
		return
	}

	var sent struct {
		sync.Mutex
		refs []domain.MessageRef
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fanOutLimit)
	for _, chat := range s.optedInChats() {
		chat := chat
		group.Go(func() error {
			refs := s.deliver(groupCtx, chat, question, path)
			sent.Lock()
			sent.refs = append(sent.refs, refs...)
			sent.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	s.outstanding = append(s.outstanding, sent.refs...)

	if err := s.persistLocked(ctx); err != nil {
		log.Printf("broadcast: persisting state: %v", err)
	}
	log.Printf("broadcast: daily puzzle %d delivered to %d messages", s.kernel.Current(), len(s.outstanding))
}

// deliver sends to one recipient, following a chat migration once and
// deregistering recipients that are gone. No retries within a cycle.
func (s *Scheduler) deliver(ctx context.Context, chat domain.ChatID, q domain.Question, path string) []domain.MessageRef {
	refs, err := s.sender.Send(ctx, chat, q, path)
	if err == nil {
		return refs
	}
	var migrated *domain.ChatMigratedError
	if errors.As(err, &migrated) {
		s.recipients.Migrate(chat, migrated.NewChat)
		refs, err = s.sender.Send(ctx, migrated.NewChat, q, path)
		if err == nil {
			return refs
		}
		chat = migrated.NewChat
	}
	log.Printf("broadcast: chat %d dropped: %v", chat, err)
	s.recipients.Deregister(chat)
	return nil
}

// optedInChats deduplicates registry entries per chat; a chat playing
// several games still gets one daily puzzle.
func (s *Scheduler) optedInChats() []domain.ChatID {
	entries := s.recipients.ListAll()
	seen := make(map[domain.ChatID]bool, len(entries))
	var chats []domain.ChatID
	for _, entry := range entries {
		if !entry.DailyOptIn || seen[entry.Key.Chat] {
			continue
		}
		seen[entry.Key.Chat] = true
		chats = append(chats, entry.Key.Chat)
	}
	return chats
}

// CheckDaily classifies an answer to the daily puzzle. This path is
// separate from per-chat sessions: it never touches a recipient's own
// progress.
func (s *Scheduler) CheckDaily(text string) domain.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kernel.Check(text)
}

// DailyQuestion re-reads the current daily puzzle for a repeat request.
func (s *Scheduler) DailyQuestion() (domain.Question, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, path, _, err := s.kernel.Question()
	return q, path, err
}

// DailyHint surfaces the daily puzzle's hint.
func (s *Scheduler) DailyHint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kernel.Hint()
}

// Record tracks extra daily-path messages (answer feedback) so the next
// cycle retracts them too.
func (s *Scheduler) Record(refs ...domain.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding = append(s.outstanding, refs...)
}

func (s *Scheduler) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Scheduler) persistLocked(ctx context.Context) error {
	state := State{Level: s.kernel.Current(), Messages: append([]domain.MessageRef(nil), s.outstanding...)}
	return s.store.Save(ctx, state)
}

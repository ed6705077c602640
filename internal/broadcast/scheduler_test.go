package broadcast_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"puzzle-quiz-service/internal/broadcast"
	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/infra/memory"
	"puzzle-quiz-service/internal/quiz"
	"puzzle-quiz-service/internal/registry"
)

type fakeSender struct {
	mu       sync.Mutex
	nextID   int64
	sends    map[domain.ChatID]int
	gone     map[domain.ChatID]bool
	migrated map[domain.ChatID]domain.ChatID
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		sends:    make(map[domain.ChatID]int),
		gone:     make(map[domain.ChatID]bool),
		migrated: make(map[domain.ChatID]domain.ChatID),
	}
}

func (f *fakeSender) Send(_ context.Context, chat domain.ChatID, q domain.Question, _ string) ([]domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[chat] {
		return nil, domain.ErrRecipientGone
	}
	if to, ok := f.migrated[chat]; ok {
		return nil, &domain.ChatMigratedError{NewChat: to}
	}
	f.sends[chat]++
	refs := make([]domain.MessageRef, len(q.Items))
	for i := range refs {
		f.nextID++
		refs[i] = domain.MessageRef{Chat: chat, MessageID: f.nextID}
	}
	return refs, nil
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []domain.MessageRef
}

func (f *fakeDeleter) Delete(_ context.Context, ref domain.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

type fakeRecipients struct {
	mu           sync.Mutex
	entries      []*registry.Entry
	deregistered []domain.ChatID
	migrations   map[domain.ChatID]domain.ChatID
}

func newFakeRecipients(chats ...domain.ChatID) *fakeRecipients {
	r := &fakeRecipients{migrations: make(map[domain.ChatID]domain.ChatID)}
	for _, chat := range chats {
		r.entries = append(r.entries, &registry.Entry{
			Key:        domain.SessionKey{Chat: chat, Game: "daily"},
			DailyOptIn: true,
		})
	}
	return r
}

func (r *fakeRecipients) ListAll() []*registry.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*registry.Entry(nil), r.entries...)
}

func (r *fakeRecipients) Deregister(chat domain.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregistered = append(r.deregistered, chat)
}

func (r *fakeRecipients) Migrate(oldChat, newChat domain.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations[oldChat] = newChat
}

func newDailyKernel(t *testing.T, n int) *quiz.Session {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		lvl := filepath.Join(dir, strconv.Itoa(i)+"-@Daily_"+strconv.Itoa(i))
		if err := os.MkdirAll(lvl, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(lvl, "question.yaml"),
			[]byte("- kind: text\n  body: daily "+strconv.Itoa(i)+"\n"), 0o644); err != nil {
			t.Fatalf("write question: %v", err)
		}
		if err := os.WriteFile(filepath.Join(lvl, "answer.yaml"),
			[]byte("- daily-answer-"+strconv.Itoa(i)+"\n"), 0o644); err != nil {
			t.Fatalf("write answer: %v", err)
		}
	}
	s, err := quiz.NewSession(dir, domain.GameConfig{}, 0)
	if err != nil {
		t.Fatalf("daily kernel: %v", err)
	}
	return s
}

func TestCycleAdvancesExactlyOncePerTickEvenWithoutRecipients(t *testing.T) {
	sched, err := broadcast.New(newDailyKernel(t, 5), newFakeSender(), &fakeDeleter{}, memory.NewStateStore(), newFakeRecipients(), "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ctx := context.Background()
	sched.Cycle(ctx)
	sched.Cycle(ctx)

	state, _ := sched.Store().Load(ctx)
	if state.Level != 2 {
		t.Fatalf("expected pointer 2 after two ticks, got %d", state.Level)
	}
}

func TestCycleRetractsPreviousMessagesFirst(t *testing.T) {
	sender := newFakeSender()
	deleter := &fakeDeleter{}
	sched, err := broadcast.New(newDailyKernel(t, 5), sender, deleter, memory.NewStateStore(), newFakeRecipients(1, 2), "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ctx := context.Background()

	sched.Cycle(ctx)
	first := append([]domain.MessageRef(nil), sched.Outstanding()...)
	if len(first) != 2 {
		t.Fatalf("expected one message per recipient, got %d", len(first))
	}

	sched.Cycle(ctx)
	if len(deleter.deleted) != len(first) {
		t.Fatalf("expected %d retractions, got %d", len(first), len(deleter.deleted))
	}
	for i, ref := range first {
		if deleter.deleted[i] != ref {
			t.Fatalf("retraction %d: got %+v, want %+v", i, deleter.deleted[i], ref)
		}
	}
}

func TestFailedRecipientDeregisteredNotRetried(t *testing.T) {
	sender := newFakeSender()
	sender.gone[2] = true
	deleter := &fakeDeleter{}
	recipients := newFakeRecipients(1, 2)
	sched, err := broadcast.New(newDailyKernel(t, 5), sender, deleter, memory.NewStateStore(), recipients, "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ctx := context.Background()

	sched.Cycle(ctx)
	if sender.sends[2] != 0 {
		t.Fatalf("unreachable chat must not count as delivered")
	}
	if len(recipients.deregistered) != 1 || recipients.deregistered[0] != 2 {
		t.Fatalf("expected chat 2 deregistered, got %v", recipients.deregistered)
	}

	// Next cycle retracts only what was actually delivered.
	sched.Cycle(ctx)
	for _, ref := range deleter.deleted {
		if ref.Chat == 2 {
			t.Fatalf("retraction for an undelivered message: %+v", ref)
		}
	}
}

func TestMigratedChatRedirectedWithinCycle(t *testing.T) {
	sender := newFakeSender()
	sender.migrated[5] = 99
	recipients := newFakeRecipients(5)
	sched, err := broadcast.New(newDailyKernel(t, 5), sender, &fakeDeleter{}, memory.NewStateStore(), recipients, "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	sched.Cycle(context.Background())
	if recipients.migrations[5] != 99 {
		t.Fatalf("expected registry migration 5->99, got %v", recipients.migrations)
	}
	if sender.sends[99] != 1 {
		t.Fatalf("expected delivery to the new chat within the cycle, got %d", sender.sends[99])
	}
	if len(recipients.deregistered) != 0 {
		t.Fatalf("migrated chat must not be deregistered")
	}
}

func TestNewRestoresPersistedState(t *testing.T) {
	store := memory.NewStateStore()
	leftover := []domain.MessageRef{{Chat: 1, MessageID: 42}}
	if err := store.Save(context.Background(), broadcast.State{Level: 3, Messages: leftover}); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	deleter := &fakeDeleter{}
	sched, err := broadcast.New(newDailyKernel(t, 5), newFakeSender(), deleter, store, newFakeRecipients(), "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if sched.Kernel().Current() != 3 {
		t.Fatalf("expected restored pointer 3, got %d", sched.Kernel().Current())
	}

	// Restored outstanding messages are retracted on the next cycle.
	sched.Cycle(context.Background())
	if len(deleter.deleted) != 1 || deleter.deleted[0] != leftover[0] {
		t.Fatalf("expected leftover message retracted, got %v", deleter.deleted)
	}
}

func TestRunDailyPersistsBeforeShutdown(t *testing.T) {
	store := memory.NewStateStore()
	sched, err := broadcast.New(newDailyKernel(t, 5), newFakeSender(), &fakeDeleter{}, store, newFakeRecipients(), "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	sched.Kernel().SetLevel(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.RunDaily(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RunDaily did not stop on cancellation")
	}
	state, _ := store.Load(context.Background())
	if state.Level != 4 {
		t.Fatalf("state must be persisted before shutdown is acknowledged, got %+v", state)
	}
}

func TestCheckDailyIsDecoupledFromChatSessions(t *testing.T) {
	sched, err := broadcast.New(newDailyKernel(t, 5), newFakeSender(), &fakeDeleter{}, memory.NewStateStore(), newFakeRecipients(), "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	sched.Cycle(context.Background()) // now at level 1
	if res := sched.CheckDaily("daily-answer-1"); res.Verdict != domain.Correct {
		t.Fatalf("expected correct daily answer, got %+v", res)
	}
	if res := sched.CheckDaily("daily-answer-0"); res.Verdict != domain.Wrong {
		t.Fatalf("expected wrong for stale answer, got %+v", res)
	}
}

func TestUntilNextTick(t *testing.T) {
	sched, err := broadcast.New(newDailyKernel(t, 2), newFakeSender(), &fakeDeleter{}, memory.NewStateStore(), newFakeRecipients(), "12:00")
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	now := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	if got := sched.UntilNextTick(now); got != time.Hour {
		t.Fatalf("expected 1h to tick, got %v", got)
	}
	after := time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)
	if got := sched.UntilNextTick(after); got != 23*time.Hour {
		t.Fatalf("expected 23h to next day's tick, got %v", got)
	}
}

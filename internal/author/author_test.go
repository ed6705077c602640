package author

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/levels"
)

func newTestStore(t *testing.T) *levels.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := levels.NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestCaptureLifecycle(t *testing.T) {
	capture := NewCapture()
	store := newTestStore(t)
	chat := domain.ChatID(1)

	if err := capture.Begin(chat, "night riddle"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := capture.Begin(chat, "another"); !errors.Is(err, ErrDraftInProgress) {
		t.Fatalf("expected ErrDraftInProgress, got %v", err)
	}

	if err := capture.PushItem(chat, domain.ContentItem{Kind: domain.KindText, Body: "what is dark"}); err != nil {
		t.Fatalf("push item: %v", err)
	}
	if err := capture.BeginAnswers(chat); err != nil {
		t.Fatalf("begin answers: %v", err)
	}
	// Question content is frozen once answers start.
	if err := capture.PushItem(chat, domain.ContentItem{Kind: domain.KindText, Body: "late"}); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}

	for _, line := range []string{"night", "?day?Almost, think opposite", "<it has stars>"} {
		if err := capture.PushAnswer(chat, line); err != nil {
			t.Fatalf("push answer %q: %v", line, err)
		}
	}

	dir, err := capture.Commit(chat, store)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if filepath.Base(dir) != "-night_riddle" {
		t.Fatalf("expected draft-marked directory, got %s", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "question.yaml")); err != nil {
		t.Fatalf("question artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "answer.yaml")); err != nil {
		t.Fatalf("answer artifact missing: %v", err)
	}

	// Committed drafts stay out of play.
	if _, err := store.List(); !errors.Is(err, domain.ErrNoLevels) {
		t.Fatalf("draft must be hidden from the level list, got %v", err)
	}

	if _, err := capture.Preview(chat); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected closed draft after commit, got %v", err)
	}
}

func TestCommitRequiresAnswers(t *testing.T) {
	capture := NewCapture()
	store := newTestStore(t)
	chat := domain.ChatID(2)

	if _, err := capture.Commit(chat, store); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}

	_ = capture.Begin(chat, "x")
	_ = capture.PushItem(chat, domain.ContentItem{Kind: domain.KindText, Body: "q"})
	if _, err := capture.Commit(chat, store); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase before answers, got %v", err)
	}

	if err := capture.BeginAnswers(chat); err != nil {
		t.Fatalf("begin answers: %v", err)
	}
	_ = capture.PushAnswer(chat, "a")
	if err := capture.Undo(chat); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := capture.Commit(chat, store); !errors.Is(err, ErrNoAnswers) {
		t.Fatalf("expected ErrNoAnswers, got %v", err)
	}
}

func TestBeginAnswersNeedsContent(t *testing.T) {
	capture := NewCapture()
	chat := domain.ChatID(3)
	_ = capture.Begin(chat, "empty")
	if err := capture.BeginAnswers(chat); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestSummaryGroupsByCategory(t *testing.T) {
	draft := Draft{AnswerLines: []string{"night", "dusk", "?day?Opposite", "<look up>"}}
	summary := draft.Summary()
	for _, want := range []string{"Answers: night, dusk", `Guesses: day "Opposite"`, "Hints: look up"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

package levels

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"puzzle-quiz-service/internal/domain"
)

func TestNaturalSortOrdersNumerically(t *testing.T) {
	names := []string{"10-@Ten", "2-@Two", "1-@One", "01-@One_Again"}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	want := []string{"1-@One", "01-@One_Again", "2-@Two", "10-@Ten"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q (full %v)", i, names[i], want[i], names)
		}
	}
}

func TestListSkipsDraftsAndSortsNaturally(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10-@Last", "2-@Second", "1-@First", "-3-@Draft"} {
		mustMkdir(t, filepath.Join(dir, name))
	}
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	levels, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 published levels, got %d", len(levels))
	}
	wantNames := []string{"First", "Second", "Last"}
	for i, lvl := range levels {
		if lvl.Index != i || lvl.Name != wantNames[i] {
			t.Fatalf("level %d: got %+v, want name %q", i, lvl, wantNames[i])
		}
	}
}

func TestLoadReadsArtifactsAndParsesAnswers(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "0-@Riddle",
		"- kind: text\n  body: what walks on four legs?\n",
		"- sphinx\n- \"?человек?warm, but about whom?\"\n- <think of ages>\n")

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	q, set, path, err := store.Load(0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(q.Items) != 1 || q.Items[0].Kind != domain.KindText {
		t.Fatalf("unexpected question %+v", q)
	}
	if path == "" {
		t.Fatalf("expected level path")
	}
	if len(set.Exact) != 1 || set.Exact[0] != "sphinx" {
		t.Fatalf("unexpected exact answers %+v", set.Exact)
	}
	if len(set.Guesses) != 1 || set.Guesses[0].Trigger != "человек" {
		t.Fatalf("unexpected guesses %+v", set.Guesses)
	}
	if len(set.Hints) != 1 || set.Hints[0] != "think of ages" {
		t.Fatalf("unexpected hints %+v", set.Hints)
	}
}

func TestLoadMissingAnswersDegradesToPlaceholders(t *testing.T) {
	dir := t.TempDir()
	lvl := filepath.Join(dir, "0-@Broken")
	mustMkdir(t, lvl)
	mustWrite(t, filepath.Join(lvl, "question.yaml"), "- kind: text\n  body: q\n")

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, set, _, err := store.Load(0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(set.Exact) != 1 || set.Exact[0] != "" {
		t.Fatalf("expected placeholder answer set, got %+v", set)
	}
}

func TestLoadOutOfRange(t *testing.T) {
	dir := t.TempDir()
	mustMkdir(t, filepath.Join(dir, "0-@Only"))
	store, _ := NewStore(dir)
	if _, _, _, err := store.Load(5); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestNewStoreMissingDirIsFatal(t *testing.T) {
	if _, err := NewStore(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing game dir")
	}
}

func TestSaveDraftIsHiddenFromList(t *testing.T) {
	dir := t.TempDir()
	mustMkdir(t, filepath.Join(dir, "0-@Live"))
	store, _ := NewStore(dir)

	if _, err := store.SaveDraft("5-@Pending", domain.Question{
		Items: []domain.ContentItem{{Kind: domain.KindText, Body: "draft"}},
	}, []string{"secret"}); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	levels, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(levels) != 1 || levels[0].Name != "Live" {
		t.Fatalf("draft leaked into listing: %+v", levels)
	}
}

func writeLevel(t *testing.T, gameDir, name, question, answer string) {
	t.Helper()
	lvl := filepath.Join(gameDir, name)
	mustMkdir(t, lvl)
	mustWrite(t, filepath.Join(lvl, "question.yaml"), question)
	mustWrite(t, filepath.Join(lvl, "answer.yaml"), answer)
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

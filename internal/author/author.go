// Package author captures new levels from a message stream: content
// items first, then answer lines, committed as a draft the store keeps
// out of play until published.
package author

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"puzzle-quiz-service/internal/answers"
	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/levels"
)

var (
	ErrNoDraft         = errors.New("no draft in progress")
	ErrDraftInProgress = errors.New("draft already in progress")
	ErrEmptyQuestion   = errors.New("question has no content yet")
	ErrNoAnswers       = errors.New("draft has no answers yet")
	ErrWrongPhase      = errors.New("not expecting this input now")
)

type phase int

const (
	collectingQuestion phase = iota
	collectingAnswers
)

// Draft is one level under construction.
type Draft struct {
	Name        string
	Items       []domain.ContentItem
	AnswerLines []string
}

// Summary renders the captured answers by category for previewing.
func (d Draft) Summary() string {
	set := answers.Parse(d.AnswerLines)
	var b strings.Builder
	b.WriteString("Answers: " + strings.Join(set.Exact, ", "))
	var guesses []string
	for _, g := range set.Guesses {
		if g.Trigger != "" {
			guesses = append(guesses, fmt.Sprintf("%s %q", g.Trigger, g.Reply))
		}
	}
	b.WriteString("\nGuesses: " + strings.Join(guesses, ", "))
	b.WriteString("\nHints: " + strings.Join(set.Hints, ", "))
	return b.String()
}

type draftState struct {
	phase phase
	draft Draft
}

// Capture tracks one in-progress draft per authoring chat.
type Capture struct {
	mu     sync.Mutex
	drafts map[domain.ChatID]*draftState
}

func NewCapture() *Capture {
	return &Capture{drafts: make(map[domain.ChatID]*draftState)}
}

// Begin opens a new draft. An unfinished draft must be committed or
// discarded first.
func (c *Capture) Begin(chat domain.ChatID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.drafts[chat]; ok {
		return ErrDraftInProgress
	}
	c.drafts[chat] = &draftState{draft: Draft{Name: strings.ReplaceAll(name, " ", "_")}}
	return nil
}

// PushItem appends question content; only valid before BeginAnswers.
func (c *Capture) PushItem(chat domain.ChatID, item domain.ContentItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.drafts[chat]
	if !ok {
		return ErrNoDraft
	}
	if state.phase != collectingQuestion {
		return ErrWrongPhase
	}
	state.draft.Items = append(state.draft.Items, item)
	return nil
}

// BeginAnswers switches the draft from content to answer collection.
func (c *Capture) BeginAnswers(chat domain.ChatID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.drafts[chat]
	if !ok {
		return ErrNoDraft
	}
	if state.phase != collectingQuestion {
		return ErrWrongPhase
	}
	if len(state.draft.Items) == 0 {
		return ErrEmptyQuestion
	}
	state.phase = collectingAnswers
	return nil
}

// PushAnswer appends one raw answer line: an exact answer, a ?trigger?reply
// guess or a <hint>.
func (c *Capture) PushAnswer(chat domain.ChatID, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.drafts[chat]
	if !ok {
		return ErrNoDraft
	}
	if state.phase != collectingAnswers {
		return ErrWrongPhase
	}
	state.draft.AnswerLines = append(state.draft.AnswerLines, line)
	return nil
}

// Undo drops the last captured entry of the current phase.
func (c *Capture) Undo(chat domain.ChatID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.drafts[chat]
	if !ok {
		return ErrNoDraft
	}
	switch {
	case state.phase == collectingAnswers && len(state.draft.AnswerLines) > 0:
		state.draft.AnswerLines = state.draft.AnswerLines[:len(state.draft.AnswerLines)-1]
	case state.phase == collectingQuestion && len(state.draft.Items) > 0:
		state.draft.Items = state.draft.Items[:len(state.draft.Items)-1]
	default:
		return ErrNoDraft
	}
	return nil
}

// Rename sets the draft's display name before committing.
func (c *Capture) Rename(chat domain.ChatID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.drafts[chat]
	if !ok {
		return ErrNoDraft
	}
	state.draft.Name = strings.ReplaceAll(name, " ", "_")
	return nil
}

// Discard throws the chat's draft away.
func (c *Capture) Discard(chat domain.ChatID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drafts, chat)
}

// Preview returns a copy of the draft as captured so far.
func (c *Capture) Preview(chat domain.ChatID) (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.drafts[chat]
	if !ok {
		return Draft{}, ErrNoDraft
	}
	return state.draft, nil
}

// Commit writes the draft into the game's level tree and closes it. The
// draft must have reached the answer phase with at least one answer.
func (c *Capture) Commit(chat domain.ChatID, store *levels.Store) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.drafts[chat]
	if !ok {
		return "", ErrNoDraft
	}
	if state.phase != collectingAnswers {
		return "", ErrWrongPhase
	}
	if len(state.draft.AnswerLines) == 0 {
		return "", ErrNoAnswers
	}
	name := state.draft.Name
	if name == "" {
		name = "draft"
	}
	dir, err := store.SaveDraft(name, domain.Question{Items: state.draft.Items}, state.draft.AnswerLines)
	if err != nil {
		return "", err
	}
	delete(c.drafts, chat)
	return dir, nil
}

package domain

import "fmt"

// ContentKind tags what a single question content item carries.
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindPhoto    ContentKind = "photo"
	KindAudio    ContentKind = "audio"
	KindVideo    ContentKind = "video"
	KindSticker  ContentKind = "sticker"
	KindDocument ContentKind = "document"
	KindLocation ContentKind = "location"
)

// ContentItem is one piece of a question as it gets delivered to a chat.
// Body is the text for KindText, a media reference otherwise; Media marks
// bodies that must be resolved against the level directory before sending.
type ContentItem struct {
	Kind    ContentKind `yaml:"kind" json:"kind"`
	Body    string      `yaml:"body" json:"body"`
	Caption string      `yaml:"caption,omitempty" json:"caption,omitempty"`
	Media   bool        `yaml:"media,omitempty" json:"media,omitempty"`
}

// Question is the ordered content of one level.
type Question struct {
	Items []ContentItem `yaml:"items"`
}

// Guess is a near-miss trigger with the custom feedback it unlocks.
type Guess struct {
	Trigger string
	Reply   string
}

// AnswerSet is the parsed three-category answer data of a level.
// Each category always holds at least one (possibly empty) entry.
type AnswerSet struct {
	Exact   []string
	Guesses []Guess
	Hints   []string
}

// Level is one ordered puzzle entry of a game.
type Level struct {
	Index int
	Name  string // display name, derived from the directory name
	Dir   string // directory name on disk
}

// Verdict classifies a submitted answer.
type Verdict int

const (
	Wrong Verdict = iota
	Close
	Correct
)

func (v Verdict) String() string {
	switch v {
	case Correct:
		return "correct"
	case Close:
		return "close"
	default:
		return "wrong"
	}
}

// CheckResult is a Verdict plus the guess reply when the verdict is Close.
type CheckResult struct {
	Verdict Verdict
	Reply   string
}

// ChatID identifies one conversation on the messaging side.
type ChatID int64

// SessionKey addresses one quiz session: a chat playing one game type.
type SessionKey struct {
	Chat ChatID
	Game string
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%d/%s", k.Chat, k.Game)
}

// MessageRef is an opaque handle to a delivered message, kept for later
// retraction.
type MessageRef struct {
	Chat      ChatID `json:"chat"`
	MessageID int64  `json:"messageId"`
}

// GameConfig is the per-game configuration loaded once at session
// construction.
type GameConfig struct {
	RandomLevels     bool   `yaml:"random_levels"`
	ChangeLevelStep  int    `yaml:"change_level_step"`
	AllowGetAnswer   bool   `yaml:"allow_to_get_answer"`
	IntroMessage     string `yaml:"intro_message"`
	NoSpoilerDefault bool   `yaml:"no_spoilers_default"`
	Version          string `yaml:"version"`
}

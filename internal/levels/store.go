// Package levels enumerates and loads the immutable level set of a game
// from its directory tree. Each level is a subdirectory holding
// question.yaml and answer.yaml; names starting with the draft marker are
// authoring work in progress and excluded from play.
package levels

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"puzzle-quiz-service/internal/answers"
	"puzzle-quiz-service/internal/domain"
)

const (
	// DraftPrefix marks level directories hidden from play.
	DraftPrefix = "-"
	// nameSep separates the order prefix from the display name.
	nameSep = "-@"

	questionFile = "question.yaml"
	answerFile   = "answer.yaml"
	configFile   = "config.yaml"
)

// Store reads the level set of one game directory.
type Store struct {
	dir string
}

// NewStore opens a game directory. A missing directory is a fatal
// configuration error for the caller.
func NewStore(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrGameNotFound, dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the game directory the store reads from.
func (s *Store) Dir() string { return s.dir }

// List enumerates published levels in natural-sort order.
func (s *Store) List() ([]domain.Level, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), DraftPrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	out := make([]domain.Level, len(names))
	for i, name := range names {
		out[i] = domain.Level{Index: i, Name: DisplayName(name), Dir: name}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoLevels
	}
	return out, nil
}

// Load reads the question and answer artifacts of the level at index.
func (s *Store) Load(index int) (domain.Question, domain.AnswerSet, string, error) {
	levels, err := s.List()
	if err != nil {
		return domain.Question{}, domain.AnswerSet{}, "", err
	}
	if index < 0 || index >= len(levels) {
		return domain.Question{}, domain.AnswerSet{}, "", fmt.Errorf("%w: index %d of %d", domain.ErrLevelNotFound, index, len(levels))
	}
	path := filepath.Join(s.dir, levels[index].Dir)

	var items []domain.ContentItem
	if err := readYAML(filepath.Join(path, questionFile), &items); err != nil {
		return domain.Question{}, domain.AnswerSet{}, "", fmt.Errorf("level %s: %w", levels[index].Dir, err)
	}

	// A broken answer artifact degrades to empty placeholders; missing
	// question content does not.
	var lines []string
	if err := readYAML(filepath.Join(path, answerFile), &lines); err != nil {
		lines = nil
	}
	return domain.Question{Items: items}, answers.Parse(lines), path, nil
}

// Config reads the game's config.yaml once; absent fields keep zero
// defaults.
func (s *Store) Config() (domain.GameConfig, error) {
	var cfg domain.GameConfig
	if err := readYAML(filepath.Join(s.dir, configFile), &cfg); err != nil {
		return domain.GameConfig{}, fmt.Errorf("game config: %w", err)
	}
	return cfg, nil
}

// SaveDraft writes a new draft level (question + raw answer lines) under
// a draft-marked directory so it stays invisible until published.
func (s *Store) SaveDraft(name string, q domain.Question, answerLines []string) (string, error) {
	dir := filepath.Join(s.dir, DraftPrefix+name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("save draft: %w", err)
	}
	if err := writeYAML(filepath.Join(dir, questionFile), q.Items); err != nil {
		return "", err
	}
	if err := writeYAML(filepath.Join(dir, answerFile), answerLines); err != nil {
		return "", err
	}
	return dir, nil
}

// ListGames enumerates game directories under the games root, skipping
// hidden entries.
func ListGames(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// DisplayName turns a level directory name into its human name: the part
// after the order separator with underscores as spaces, or the raw name.
func DisplayName(dir string) string {
	if _, name, ok := strings.Cut(dir, nameSep); ok {
		return strings.ReplaceAll(name, "_", " ")
	}
	return dir
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func writeYAML(path string, in any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

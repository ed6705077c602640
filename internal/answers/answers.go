// Package answers parses raw answer lines into the three-category answer
// set and normalizes submitted text for matching.
package answers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"puzzle-quiz-service/internal/domain"
)

// stripDiacritics decomposes to NFD, drops combining marks, recomposes.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a submitted answer or stored exact answer into its
// canonical matching form: trimmed, lower-cased, inner whitespace
// collapsed, diacritics stripped, and the look-alike letter ё folded to е.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "ё", "е")
	if folded, _, err := transform.String(stripDiacritics, s); err == nil {
		s = folded
	}
	return s
}

// Parse splits raw answer lines into exact answers, guesses, and hints.
//
// Line conventions:
//
//	?trigger?reply  near-miss guess: trigger is matched, reply is sent back
//	<hint text>     hint, surfaced only on request
//	anything else   exact answer
//
// Older artifacts used ~ or / as the guess delimiter; those are converted
// by the authoring import, never interpreted here. Every category keeps at
// least one empty placeholder so matching logic stays total on malformed
// or empty artifacts.
func Parse(lines []string) domain.AnswerSet {
	set := domain.AnswerSet{}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "?") && len(strings.SplitN(line[1:], "?", 2)) == 2:
			parts := strings.SplitN(line[1:], "?", 2)
			set.Guesses = append(set.Guesses, domain.Guess{
				Trigger: Normalize(parts[0]),
				Reply:   strings.TrimSpace(parts[1]),
			})
		case strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">"):
			set.Hints = append(set.Hints, strings.ToLower(strings.TrimSpace(line[1:len(line)-1])))
		default:
			set.Exact = append(set.Exact, Normalize(line))
		}
	}
	if len(set.Exact) == 0 {
		set.Exact = []string{""}
	}
	if len(set.Hints) == 0 {
		set.Hints = []string{""}
	}
	if len(set.Guesses) == 0 {
		set.Guesses = []domain.Guess{{}}
	}
	return set
}

// Check classifies text against the set: exact answers win, then guess
// triggers in list order, else wrong.
func Check(set domain.AnswerSet, text string) domain.CheckResult {
	folded := Normalize(text)
	for _, exact := range set.Exact {
		if folded == exact && exact != "" {
			return domain.CheckResult{Verdict: domain.Correct}
		}
	}
	for _, guess := range set.Guesses {
		if folded == guess.Trigger && guess.Trigger != "" {
			return domain.CheckResult{Verdict: domain.Close, Reply: guess.Reply}
		}
	}
	return domain.CheckResult{Verdict: domain.Wrong}
}

// CapitalizeSentences upper-cases the first letter of each sentence for
// user-facing hint and answer text.
func CapitalizeSentences(s string) string {
	out := []rune(s)
	capitalize := true
	for i, r := range out {
		switch {
		case capitalize && unicode.IsLetter(r):
			out[i] = unicode.ToUpper(r)
			capitalize = false
		case r == '.' || r == '?' || r == '!':
			capitalize = true
		}
	}
	return string(out)
}

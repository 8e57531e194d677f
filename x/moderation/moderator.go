// Package moderation censors disallowed words in user supplied text
package moderation

import (
	_ "embed"
	"errors"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"golang.org/x/exp/slices"

	"github.com/meowerlab/meower/x/util"
)

//go:embed words.txt
var defaultWordList string

// DefaultPlaceholder is the rune written over every censored character
const DefaultPlaceholder = '*'

// Moderator censors whole dictionary words, case-insensitively and through common leet substitutions.
// It is safe for concurrent use once built.
type Moderator struct {
	matcher     *goahocorasick.Machine
	placeholder rune
}

// DefaultWords returns the built-in dictionary
func DefaultWords() []string {
	return strings.Fields(defaultWordList)
}

// NewModerator builds the automaton over the given words
func NewModerator(words []string, placeholder rune) (*Moderator, error) {
	normalized := make([]string, 0, len(words))
	for _, word := range words {
		n := string(normalizeRunes([]rune(strings.TrimSpace(word))))
		if n == "" {
			continue
		}
		normalized = append(normalized, n)
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)

	if len(normalized) == 0 {
		return nil, errors.New("moderation dictionary is empty")
	}

	patterns := make([][]rune, len(normalized))
	for i, word := range normalized {
		patterns[i] = []rune(word)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}

	if placeholder == 0 {
		placeholder = DefaultPlaceholder
	}

	return &Moderator{matcher: m, placeholder: placeholder}, nil
}

// NewDefaultModerator builds a moderator over the built-in dictionary plus extra words
func NewDefaultModerator(extraWords []string, placeholder rune) (*Moderator, error) {
	return NewModerator(append(DefaultWords(), extraWords...), placeholder)
}

// NewFromConfig builds the moderator described by the moderation section
func NewFromConfig(config util.Config) (*Moderator, error) {
	return NewDefaultModerator(config.Moderation.ExtraWords, config.Moderation.PlaceholderRune())
}

// Clean replaces every censored word with placeholders, one per rune, so the length never changes
func (m *Moderator) Clean(text string) string {
	original := []rune(text)
	if len(original) == 0 {
		return text
	}

	terms := m.matcher.MultiPatternSearch(normalizeRunes(original), false)
	if len(terms) == 0 {
		return text
	}

	censored := make([]rune, len(original))
	copy(censored, original)
	changed := false

	for _, term := range terms {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(original) {
			continue
		}
		if !isWordBoundary(original, start-1) || !isWordBoundary(original, end) {
			continue
		}
		for i := start; i < end; i++ {
			censored[i] = m.placeholder
		}
		changed = true
	}

	if !changed {
		return text
	}
	return string(censored)
}

// isWordBoundary reports whether position i lies outside of a word
func isWordBoundary(runes []rune, i int) bool {
	if i < 0 || i >= len(runes) {
		return true
	}
	r := runes[i]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// normalizeRunes lowercases and folds leet characters, keeping one output rune per input rune
func normalizeRunes(input []rune) []rune {
	out := make([]rune, len(input))
	for i, r := range input {
		out[i] = unicode.ToLower(simplifyRune(r))
	}
	return out
}

func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

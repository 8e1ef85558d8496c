// Package moderation masks forbidden words in message content before
// the relay persists or broadcasts it. Matching runs on a normalized
// view of the text (lowercased, leet folded, separators stripped) so
// spaced or obfuscated variants are still caught, while the mask is
// applied to the original runes to preserve spacing.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// mapping links every normalized rune back to its original index.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton over the normalized
// word list.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// Censor replaces every matched span of the original text with the
// replacement rune. The input is returned untouched when nothing
// matches.
func (m *Moderator) Censor(original string) string {
	view := project(original)
	if len(view.normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(view.normalized, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(view.origIdx) {
			continue
		}
		for i := view.origIdx[start]; i <= view.origIdx[end-1]; i++ {
			origRunes[i] = m.replacement
		}
	}
	return string(origRunes)
}

// project builds the searchable view of the input and tracks original
// rune positions.
func project(input string) mapping {
	origRunes := []rune(input)
	view := mapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		folded := foldLeet(r)
		if isSeparator(folded) {
			continue
		}
		view.normalized = append(view.normalized, unicode.ToLower(folded))
		view.origIdx = append(view.origIdx, i)
	}
	return view
}

func normalize(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		folded := foldLeet(r)
		if isSeparator(folded) {
			continue
		}
		out = append(out, unicode.ToLower(folded))
	}
	return out
}

// foldLeet maps common leet speak characters back to their standard
// alphabet counterparts.
func foldLeet(r rune) rune {
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
	case '7':
		return 't'
	default:
		return r
	}
}

func isSeparator(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}

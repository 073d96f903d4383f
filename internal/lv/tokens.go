package lv

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lvimport/internal/model"
)

const (
	// DefaultMaxTokens is the largest array the store accepts in an
	// array-contains query.
	DefaultMaxTokens = 40
	// MinTokenLen is measured in runes.
	MinTokenLen = 3
)

// Tokenizer derives the suchwoerter of a record.
type Tokenizer struct {
	MaxTokens int
}

// NewTokenizer returns a tokenizer capped at limit tokens; limit <= 0 means DefaultMaxTokens.
func NewTokenizer(limit int) Tokenizer {
	if limit <= 0 {
		limit = DefaultMaxTokens
	}
	return Tokenizer{MaxTokens: limit}
}

// Tokens returns the deduplicated, lowercased tokens of rec in source field
// order: identifier, kurztext, beschreibung, hauptgruppe, untergruppe,
// mengeneinheit. An identifier made only of token characters and '.' is also
// kept whole as the first token.
func (t Tokenizer) Tokens(rec model.Record) []string {
	limit := t.MaxTokens
	if limit <= 0 {
		limit = DefaultMaxTokens
	}
	lower := cases.Lower(language.German)

	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	add := func(tok string) bool {
		if utf8.RuneCountInString(tok) < MinTokenLen {
			return true
		}
		if _, ok := seen[tok]; ok {
			return true
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		return len(out) < limit
	}

	if id := lower.String(strings.TrimSpace(rec.PositionNr)); identifierToken(id) {
		if !add(id) {
			return out
		}
	}
	text := lower.String(strings.Join([]string{
		rec.PositionNr,
		rec.Kurztext,
		rec.Beschreibung,
		rec.Hauptgruppe,
		rec.Untergruppe,
		rec.Mengeneinheit,
	}, " "))
	for _, tok := range strings.Fields(strings.Map(blank, text)) {
		if !add(tok) {
			break
		}
	}
	return out
}

// identifierToken reports whether id may be kept whole: token characters
// plus '.', no whitespace.
func identifierToken(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r != '.' && (unicode.IsSpace(r) || blank(r) != r) {
			return false
		}
	}
	return true
}

// blank keeps a-z, äöüß, digits, whitespace, '/' and '-'; everything else becomes a space.
func blank(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return r
	case r == 'ä', r == 'ö', r == 'ü', r == 'ß', r == '/', r == '-':
		return r
	case unicode.IsSpace(r):
		return r
	}
	return ' '
}

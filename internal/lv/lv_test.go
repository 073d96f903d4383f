package lv

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lvimport/internal/model"
)

func TestDeriveKey(t *testing.T) {
	key, err := DeriveKey("1.1.10")
	require.NoError(t, err)
	assert.Equal(t, "1_1_10", key)

	key, err = DeriveKey(" 4.2 ")
	require.NoError(t, err)
	assert.Equal(t, "4_2", key)

	for _, id := range []string{"", "   "} {
		_, err := DeriveKey(id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidRecord), "id %q: %v", id, err)
		var ire *InvalidRecordError
		require.True(t, errors.As(err, &ire))
		assert.Equal(t, -1, ire.Index)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)
	p, err = ParsePolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)
	p, err = ParsePolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)
	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}

var tokenRE = regexp.MustCompile(`^[a-zäöüß0-9/\-]+$`)

func TestTokens_Scenario(t *testing.T) {
	rec := model.Record{PositionNr: "2.3.1", Kurztext: "Rohr DN50", Hauptgruppe: "Sanitär"}
	toks := NewTokenizer(0).Tokens(rec)
	assert.Subset(t, toks, []string{"2.3.1", "rohr", "dn50", "sanitär"})
	assert.Equal(t, "2.3.1", toks[0])
}

func TestTokens_Properties(t *testing.T) {
	rec := model.Record{
		PositionNr:    "1.4.20",
		Kurztext:      "Kugelhahn, DN 25 (Messing) – ÖLFREI!",
		Beschreibung:  "Liefern und montieren; Anschluss 1/2\" Außengewinde, Pressfitting-System. kugelhahn",
		Hauptgruppe:   "Heizung",
		Untergruppe:   "Armaturen",
		Mengeneinheit: "Stk",
	}
	tok := NewTokenizer(0)
	first := tok.Tokens(rec)
	second := tok.Tokens(rec)
	assert.Equal(t, first, second)
	assert.LessOrEqual(t, len(first), DefaultMaxTokens)

	seen := map[string]bool{}
	for i, s := range first {
		assert.False(t, seen[s], "duplicate token %q", s)
		seen[s] = true
		assert.GreaterOrEqual(t, len([]rune(s)), MinTokenLen, "short token %q", s)
		if i == 0 {
			assert.Equal(t, "1.4.20", s)
			continue
		}
		assert.Regexp(t, tokenRE, s)
	}
	assert.Subset(t, first, []string{"kugelhahn", "messing", "ölfrei", "außengewinde", "pressfitting-system", "1/2", "stk"})
	assert.NotContains(t, first, "dn")
}

func TestTokens_CapAndOrder(t *testing.T) {
	var words []string
	for i := 0; i < 100; i++ {
		words = append(words, fmt.Sprintf("wort%03d", i))
	}
	rec := model.Record{PositionNr: "9", Beschreibung: strings.Join(words, " ")}

	toks := NewTokenizer(0).Tokens(rec)
	require.Len(t, toks, DefaultMaxTokens)
	assert.Equal(t, "wort000", toks[0])
	assert.Equal(t, "wort039", toks[39])

	toks = NewTokenizer(5).Tokens(rec)
	assert.Equal(t, []string{"wort000", "wort001", "wort002", "wort003", "wort004"}, toks)
}

func TestTokens_Empty(t *testing.T) {
	toks := NewTokenizer(0).Tokens(model.Record{})
	assert.NotNil(t, toks)
	assert.Empty(t, toks)
}

func TestMapper_Scenario(t *testing.T) {
	m := NewMapper("", NewTokenizer(0))
	op, err := m.Map(model.Record{PositionNr: "2.3.1", Kurztext: "Rohr DN50", Hauptgruppe: "Sanitär"})
	require.NoError(t, err)

	assert.Equal(t, "2_3_1", op.Key)
	assert.Equal(t, "2.3.1", op.Doc.PositionNr)
	assert.Zero(t, op.Doc.Menge)
	assert.Zero(t, op.Doc.Einheitspreis)
	assert.Zero(t, op.Doc.Gesamtbetrag)
	assert.Equal(t, "", op.Doc.Untergruppe)
	assert.Equal(t, DefaultDataset, op.Doc.LVName)
	assert.True(t, op.Doc.Aktiv)
	assert.True(t, op.Doc.CreatedAt.IsServer())
	assert.True(t, op.Doc.UpdatedAt.IsServer())
	assert.Subset(t, op.Doc.Suchwoerter, []string{"rohr", "dn50", "sanitär", "2.3.1"})
}

func TestMapper_TrimsAndCopies(t *testing.T) {
	m := NewMapper("Lüftung 2026", NewTokenizer(0))
	op, err := m.Map(model.Record{
		PositionNr:    "3.1",
		Kurztext:      "  Lüftungsgerät ",
		Menge:         2,
		Einheitspreis: 1499.5,
		Gesamtbetrag:  2999,
		Seite:         17,
		Suchtext:      "lüftungsgerät",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lüftungsgerät", op.Doc.Kurztext)
	assert.Equal(t, 2.0, op.Doc.Menge)
	assert.Equal(t, 1499.5, op.Doc.Einheitspreis)
	assert.Equal(t, 2999.0, op.Doc.Gesamtbetrag)
	assert.Equal(t, 17, op.Doc.Seite)
	assert.Equal(t, "lüftungsgerät", op.Doc.Suchtext)
	assert.Equal(t, "Lüftung 2026", op.Doc.LVName)
}

func TestMapper_RejectsMissingIdentifier(t *testing.T) {
	_, err := NewMapper("", NewTokenizer(0)).Map(model.Record{Kurztext: "ohne Nummer"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestTokens_IdentifierOutsideCharset(t *testing.T) {
	tok := NewTokenizer(0)
	toks := tok.Tokens(model.Record{PositionNr: "A 1.2", Kurztext: "Rohr DN50"})
	assert.NotContains(t, toks, "a 1.2")
	assert.Equal(t, []string{"rohr", "dn50"}, toks)

	toks = tok.Tokens(model.Record{PositionNr: "01.02#3", Kurztext: "Bogen"})
	assert.NotContains(t, toks, "01.02#3")

	toks = tok.Tokens(model.Record{PositionNr: "Ü-1.2/a", Kurztext: "Bogen"})
	require.NotEmpty(t, toks)
	assert.Equal(t, "ü-1.2/a", toks[0])

	valid := regexp.MustCompile(`^[a-zäöüß0-9./-]+$`)
	for _, id := range []string{"A 1.2", "1.1\t2", "x_1.2", "2.3.1", "POS 7"} {
		for _, s := range tok.Tokens(model.Record{PositionNr: id, Kurztext: "Rohr"}) {
			assert.Regexp(t, valid, s, "identifier %q", id)
		}
	}
}

func TestSummarize(t *testing.T) {
	recs := []model.Record{{Hauptgruppe: "A"}, {Hauptgruppe: "A"}, {}}
	assert.Equal(t, map[string]int{"A": 2, "Unbekannt": 1}, Summarize(recs))
	assert.Empty(t, Summarize(nil))
}

func TestSummarizeOrdered(t *testing.T) {
	recs := []model.Record{{Hauptgruppe: "Sanitär"}, {}, {Hauptgruppe: "Heizung"}, {Hauptgruppe: "Sanitär"}, {Hauptgruppe: "  "}}
	assert.Equal(t, []CategoryCount{
		{Name: "Sanitär", Count: 2},
		{Name: UnknownCategory, Count: 2},
		{Name: "Heizung", Count: 1},
	}, SummarizeOrdered(recs))
}

package lv

import (
	"strings"

	"lvimport/internal/model"
)

// DefaultDataset is the lv_name stamped on every imported position.
const DefaultDataset = "Heizung-Sanitär 2025/2026"

// Mapper converts records into upsert operations.
type Mapper struct {
	Dataset   string
	Tokenizer Tokenizer
}

// NewMapper returns a mapper for dataset; an empty dataset means DefaultDataset.
func NewMapper(dataset string, tok Tokenizer) Mapper {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return Mapper{Dataset: dataset, Tokenizer: tok}
}

// Map builds the document for rec. It fails only when no key can be derived.
func (m Mapper) Map(rec model.Record) (model.Op, error) {
	key, err := DeriveKey(rec.PositionNr)
	if err != nil {
		return model.Op{}, err
	}
	doc := model.Document{
		PositionNr:    strings.TrimSpace(rec.PositionNr),
		Hauptgruppe:   strings.TrimSpace(rec.Hauptgruppe),
		Untergruppe:   strings.TrimSpace(rec.Untergruppe),
		Kurztext:      strings.TrimSpace(rec.Kurztext),
		Beschreibung:  strings.TrimSpace(rec.Beschreibung),
		Menge:         rec.Menge,
		Mengeneinheit: strings.TrimSpace(rec.Mengeneinheit),
		Einheitspreis: rec.Einheitspreis,
		Gesamtbetrag:  rec.Gesamtbetrag,
		Seite:         rec.Seite,
		Suchtext:      rec.Suchtext,
		Suchwoerter:   m.Tokenizer.Tokens(rec),
		LVName:        m.Dataset,
		Aktiv:         true,
		CreatedAt:     model.ServerTimestamp(),
		UpdatedAt:     model.ServerTimestamp(),
	}
	return model.Op{Key: key, Doc: doc}, nil
}

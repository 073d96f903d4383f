package model

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Record is one LV position as delivered by the source file.
type Record struct {
	PositionNr    string  `json:"position_nr"`
	Hauptgruppe   string  `json:"hauptgruppe"`
	Untergruppe   string  `json:"untergruppe"`
	Kurztext      string  `json:"kurztext"`
	Beschreibung  string  `json:"beschreibung"`
	Menge         float64 `json:"menge"`
	Mengeneinheit string  `json:"mengeneinheit"`
	Einheitspreis float64 `json:"einheitspreis"`
	Gesamtbetrag  float64 `json:"gesamtbetrag"`
	Seite         int     `json:"seite"`
	Suchtext      string  `json:"suchtext"`
}

// Timestamp is either a concrete time or the ServerTimestamp sentinel,
// which a store resolves when the write is committed.
type Timestamp struct {
	t      time.Time
	server bool
}

// ServerTimestamp returns the "assign at commit time" sentinel.
func ServerTimestamp() Timestamp { return Timestamp{server: true} }

// At returns a concrete timestamp.
func At(t time.Time) Timestamp { return Timestamp{t: t.UTC()} }

func (ts Timestamp) IsServer() bool  { return ts.server }
func (ts Timestamp) Time() time.Time { return ts.t }

// Resolve replaces the sentinel with now.
func (ts Timestamp) Resolve(now time.Time) time.Time {
	if ts.server {
		return now.UTC()
	}
	return ts.t
}

// Document is the normalized projection of a Record written to the store.
type Document struct {
	PositionNr    string
	Hauptgruppe   string
	Untergruppe   string
	Kurztext      string
	Beschreibung  string
	Menge         float64
	Mengeneinheit string
	Einheitspreis float64
	Gesamtbetrag  float64
	Seite         int
	Suchtext      string
	Suchwoerter   []string
	LVName        string
	Aktiv         bool
	CreatedAt     Timestamp
	UpdatedAt     Timestamp
}

// Stored field names. They match the existing collection and its composite
// indexes (aktiv, hauptgruppe, position_nr) and (aktiv, untergruppe, einheitspreis).
const (
	FieldPositionNr    = "position_nr"
	FieldHauptgruppe   = "hauptgruppe"
	FieldUntergruppe   = "untergruppe"
	FieldKurztext      = "kurztext"
	FieldBeschreibung  = "beschreibung"
	FieldMenge         = "menge"
	FieldMengeneinheit = "mengeneinheit"
	FieldEinheitspreis = "einheitspreis"
	FieldGesamtbetrag  = "gesamtbetrag"
	FieldSeite         = "seite"
	FieldSuchtext      = "suchtext"
	FieldSuchwoerter   = "suchwoerter"
	FieldLVName        = "lv_name"
	FieldAktiv         = "aktiv"
	FieldCreatedAt     = "created_at"
	FieldUpdatedAt     = "updated_at"
)

// Fields returns the document as a field map. Timestamp fields that hold the
// sentinel are omitted and their names returned in server so the caller can
// let the backend assign them.
func (d Document) Fields() (fields map[string]any, server []string) {
	fields = map[string]any{
		FieldPositionNr:    d.PositionNr,
		FieldHauptgruppe:   d.Hauptgruppe,
		FieldUntergruppe:   d.Untergruppe,
		FieldKurztext:      d.Kurztext,
		FieldBeschreibung:  d.Beschreibung,
		FieldMenge:         d.Menge,
		FieldMengeneinheit: d.Mengeneinheit,
		FieldEinheitspreis: d.Einheitspreis,
		FieldGesamtbetrag:  d.Gesamtbetrag,
		FieldSeite:         d.Seite,
		FieldSuchtext:      d.Suchtext,
		FieldSuchwoerter:   append([]string{}, d.Suchwoerter...),
		FieldLVName:        d.LVName,
		FieldAktiv:         d.Aktiv,
	}
	stamps := []struct {
		name string
		ts   Timestamp
	}{{FieldCreatedAt, d.CreatedAt}, {FieldUpdatedAt, d.UpdatedAt}}
	for _, s := range stamps {
		if s.ts.IsServer() {
			server = append(server, s.name)
			continue
		}
		fields[s.name] = s.ts.Time()
	}
	return fields, server
}

// Resolve returns the document fields with every sentinel set to now.
func (d Document) Resolve(now time.Time) map[string]any {
	fields, server := d.Fields()
	for _, name := range server {
		fields[name] = now.UTC()
	}
	return fields
}

// Op is one pending merge-upsert.
type Op struct {
	Key string
	Doc Document
}

// ReadRecords decodes a JSON array of records.
func ReadRecords(r io.Reader) ([]Record, error) {
	var recs []Record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return recs, nil
}

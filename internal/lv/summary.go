package lv

import (
	"strings"

	"lvimport/internal/model"
)

// UnknownCategory collects records without a hauptgruppe.
const UnknownCategory = "Unbekannt"

// CategoryCount is one line of the import summary.
type CategoryCount struct {
	Name  string
	Count int
}

// Summarize counts records per hauptgruppe.
func Summarize(recs []model.Record) map[string]int {
	out := make(map[string]int)
	for _, r := range recs {
		out[category(r)]++
	}
	return out
}

// SummarizeOrdered is Summarize in order of first appearance.
func SummarizeOrdered(recs []model.Record) []CategoryCount {
	idx := make(map[string]int)
	var out []CategoryCount
	for _, r := range recs {
		c := category(r)
		i, ok := idx[c]
		if !ok {
			i = len(out)
			idx[c] = i
			out = append(out, CategoryCount{Name: c})
		}
		out[i].Count++
	}
	return out
}

func category(r model.Record) string {
	if c := strings.TrimSpace(r.Hauptgruppe); c != "" {
		return c
	}
	return UnknownCategory
}

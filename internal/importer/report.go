package importer

import (
	"fmt"
	"strings"

	"lvimport/internal/lv"
)

// Report is the outcome of one run.
type Report struct {
	RunID       string
	Fingerprint string
	Records     int
	Documents   int
	BatchCount  int
	StartBatch  int
	Outcomes    []BatchOutcome
	Categories  []lv.CategoryCount
	Rejected    []Rejected
	Collisions  []Collision
}

func newReport(p *Plan) *Report {
	return &Report{
		RunID:       p.RunID,
		Fingerprint: p.Fingerprint,
		Records:     p.Records,
		Documents:   len(p.Ops),
		BatchCount:  len(p.Batches),
		StartBatch:  1,
		Categories:  p.Categories,
		Rejected:    p.Rejected,
		Collisions:  p.Collisions,
	}
}

// Committed counts batches that are in the store, including batches an
// earlier run committed.
func (r *Report) Committed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusCommitted || o.Status == StatusSkipped {
			n++
		}
	}
	return n
}

// FailedBatch returns the failed outcome, if any.
func (r *Report) FailedBatch() (BatchOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return o, true
		}
	}
	return BatchOutcome{}, false
}

func (r *Report) CategoryCounts() map[string]int {
	out := make(map[string]int, len(r.Categories))
	for _, c := range r.Categories {
		out[c.Name] = c.Count
	}
	return out
}

// Summary renders the report for humans. It always says how many batches
// made it into the store.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d records, %d documents, %d/%d batches committed", r.Records, r.Documents, r.Committed(), r.BatchCount)
	if r.StartBatch > 1 {
		fmt.Fprintf(&b, " (resumed at batch %d)", r.StartBatch)
	}
	if f, ok := r.FailedBatch(); ok {
		fmt.Fprintf(&b, "; batch %d/%d failed: %v", f.Position, f.Total, f.Err)
	}
	if len(r.Rejected) > 0 {
		fmt.Fprintf(&b, "; %d records rejected", len(r.Rejected))
	}
	if len(r.Collisions) > 0 {
		fmt.Fprintf(&b, "; %d key collisions", len(r.Collisions))
	}
	for _, c := range r.Categories {
		fmt.Fprintf(&b, "\n  %s: %d", c.Name, c.Count)
	}
	return b.String()
}

package restore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lvimport/internal/changelog"
	"lvimport/internal/manifest"
)

type stubReader struct {
	m   manifest.Manifest
	err error
}

func (s stubReader) ReadLatest() (manifest.Manifest, error) { return s.m, s.err }

func TestResumePoint_FromManifest(t *testing.T) {
	r := NewResolver(stubReader{m: manifest.Manifest{Fingerprint: "fp", TotalBatches: 5, LastCommittedBatch: 2}}, "")
	got, err := r.ResumePoint("fp", 5)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got != 3 {
		t.Fatalf("got %d want 3", got)
	}
}

func TestResumePoint_CompleteOrForeignRunStartsOver(t *testing.T) {
	cases := []struct {
		name string
		m    manifest.Manifest
	}{
		{"complete", manifest.Manifest{Fingerprint: "fp", TotalBatches: 5, LastCommittedBatch: 5}},
		{"other input", manifest.Manifest{Fingerprint: "other", TotalBatches: 5, LastCommittedBatch: 2}},
		{"other batch count", manifest.Manifest{Fingerprint: "fp", TotalBatches: 4, LastCommittedBatch: 2}},
	}
	for _, c := range cases {
		r := NewResolver(stubReader{m: c.m}, "")
		got, err := r.ResumePoint("fp", 5)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != 1 {
			t.Fatalf("%s: got %d want 1", c.name, got)
		}
	}
}

func TestResumePoint_ManifestError(t *testing.T) {
	r := NewResolver(stubReader{err: errors.New("broker down")}, "")
	if _, err := r.ResumePoint("fp", 3); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResumePoint_FallsBackToChangelog(t *testing.T) {
	dir := t.TempDir()
	w, err := changelog.NewFileWriter(dir, "lvimport.jsonl")
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	for _, e := range []changelog.Entry{
		{Fingerprint: "fp", Batch: 1, Batches: 4},
		{Fingerprint: "old", Batch: 2, Batches: 4},
		{Fingerprint: "fp", Batch: 2, Batches: 4},
	} {
		if err := w.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	r := NewResolver(stubReader{err: manifest.ErrNoManifest}, w.Path())
	got, err := r.ResumePoint("fp", 4)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got != 3 {
		t.Fatalf("got %d want 3", got)
	}

	got, _ = r.ResumePoint("unknown", 4)
	if got != 1 {
		t.Fatalf("unknown fingerprint: got %d want 1", got)
	}
}

func TestResumePoint_NothingKnown(t *testing.T) {
	r := NewResolver(nil, filepath.Join(t.TempDir(), "missing.jsonl"))
	got, err := r.ResumePoint("fp", 2)
	if err != nil || got != 1 {
		t.Fatalf("got %d err=%v", got, err)
	}
}

func TestResumePoint_CorruptChangelog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{not json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewResolver(nil, path).ResumePoint("fp", 2); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNextBatch_StopsAtGap(t *testing.T) {
	entries := []changelog.Entry{
		{Fingerprint: "fp", Batch: 1},
		{Fingerprint: "fp", Batch: 3},
		{Fingerprint: "fp", Batch: 1},
	}
	if got := NextBatch(entries, "fp"); got != 2 {
		t.Fatalf("got %d want 2", got)
	}
	if got := NextBatch(nil, "fp"); got != 1 {
		t.Fatalf("empty: got %d", got)
	}
}

// Package restore works out where an interrupted import run continues.
package restore

import (
	"errors"
	"fmt"

	"lvimport/internal/changelog"
	"lvimport/internal/manifest"
)

// Resolver finds the first uncommitted batch of a run from the latest
// manifest, falling back to the changelog file.
type Resolver struct {
	manifestReader manifest.Reader
	changelogPath  string
}

// NewResolver accepts a nil reader or an empty changelog path; the missing
// source is then skipped.
func NewResolver(mr manifest.Reader, changelogPath string) *Resolver {
	return &Resolver{manifestReader: mr, changelogPath: changelogPath}
}

// ResumePoint returns the 1-based batch to start from. A run that finished,
// or that a different input produced, starts over at 1.
func (r *Resolver) ResumePoint(fingerprint string, totalBatches int) (int, error) {
	if r.manifestReader != nil {
		m, err := r.manifestReader.ReadLatest()
		switch {
		case errors.Is(err, manifest.ErrNoManifest):
		case err != nil:
			return 0, fmt.Errorf("read manifest: %w", err)
		case m.Fingerprint == fingerprint && m.TotalBatches == totalBatches:
			if m.Complete() {
				return 1, nil
			}
			return clamp(m.LastCommittedBatch+1, totalBatches), nil
		}
	}

	if r.changelogPath == "" {
		return 1, nil
	}
	entries, err := changelog.ReadFile(r.changelogPath)
	if err != nil {
		return 0, fmt.Errorf("read changelog: %w", err)
	}
	next := NextBatch(entries, fingerprint)
	if next > totalBatches {
		return 1, nil
	}
	return next, nil
}

// NextBatch replays entries and returns one past the highest batch that was
// committed contiguously from batch 1 for fingerprint.
func NextBatch(entries []changelog.Entry, fingerprint string) int {
	done := make(map[int]bool)
	for _, e := range entries {
		if e.Fingerprint == fingerprint {
			done[e.Batch] = true
		}
	}
	next := 1
	for done[next] {
		next++
	}
	return next
}

func clamp(n, total int) int {
	if n < 1 || n > total {
		return 1
	}
	return n
}

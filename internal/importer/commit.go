package importer

import (
	"context"
	"time"

	"lvimport/internal/changelog"
	"lvimport/internal/docstore"
	"lvimport/internal/logger"
	"lvimport/internal/manifest"
	"lvimport/internal/metrics"
)

// Status of one batch after a run.
type Status string

const (
	StatusCommitted    Status = "committed"
	StatusFailed       Status = "failed"
	StatusNotAttempted Status = "not_attempted"
	StatusSkipped      Status = "skipped" // committed by an earlier run
)

// BatchOutcome is the per-batch line of a report.
type BatchOutcome struct {
	Position int
	Total    int
	Ops      int
	Status   Status
	Duration time.Duration
	Err      error
}

// RunInfo identifies the run in journal entries and manifests.
type RunInfo struct {
	RunID       string
	Fingerprint string
	BatchSize   int
}

// Committer writes batches one after another. It never has more than one
// UpsertBatch call in flight.
type Committer struct {
	store    docstore.Writer
	timeout  time.Duration
	log      logger.Logger
	metrics  *metrics.Registry
	journal  changelog.Writer
	manifest manifest.Publisher
}

func NewCommitter(store docstore.Writer, opts Options) *Committer {
	log := opts.Logger
	if log == nil {
		log = logger.NopLogger
	}
	return &Committer{
		store:    store,
		timeout:  opts.BatchTimeout,
		log:      log,
		metrics:  opts.Metrics,
		journal:  opts.Journal,
		manifest: opts.Manifest,
	}
}

// Commit commits batches in order starting at position start (1-based);
// earlier batches are reported as skipped. It stops at the first failure and
// returns a *BatchCommitError; outcomes always cover every batch.
func (c *Committer) Commit(ctx context.Context, run RunInfo, batches []Batch, start int) ([]BatchOutcome, error) {
	total := len(batches)
	outcomes := make([]BatchOutcome, total)
	for i, b := range batches {
		outcomes[i] = BatchOutcome{Position: b.Position, Total: total, Ops: len(b.Ops), Status: StatusNotAttempted}
	}
	if c.metrics != nil {
		c.metrics.RunBatches.Set(float64(total))
		c.metrics.RunCommitted.Set(0)
	}

	for i, b := range batches {
		if b.Position < start {
			outcomes[i].Status = StatusSkipped
			continue
		}
		t0 := time.Now()
		err := c.commitOne(ctx, b)
		outcomes[i].Duration = time.Since(t0)
		if c.metrics != nil {
			c.metrics.BatchLatencySec.Observe(outcomes[i].Duration.Seconds())
		}
		if err != nil {
			outcomes[i].Status = StatusFailed
			outcomes[i].Err = err
			if c.metrics != nil {
				c.metrics.BatchesFailed.Inc()
			}
			c.log.Errorf("batch %d/%d failed after %s: %v", b.Position, total, outcomes[i].Duration, err)
			return outcomes, &BatchCommitError{Position: b.Position, Total: total, Ops: len(b.Ops), Cause: err}
		}
		outcomes[i].Status = StatusCommitted
		c.log.Infof("batch %d/%d committed (%d ops)", b.Position, total, len(b.Ops))
		c.record(run, b, total)
	}
	return outcomes, nil
}

func (c *Committer) commitOne(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.store.UpsertBatch(ctx, b.Ops)
}

// record publishes progress for a committed batch. Errors are logged only:
// the batch is already in the store and recommitting it is idempotent.
func (c *Committer) record(run RunInfo, b Batch, total int) {
	if c.metrics != nil {
		c.metrics.BatchesCommitted.Inc()
		c.metrics.DocumentsWritten.Add(float64(len(b.Ops)))
		c.metrics.RunCommitted.Set(float64(b.Position))
	}
	if c.journal != nil {
		e := changelog.Entry{
			RunID:       run.RunID,
			Fingerprint: run.Fingerprint,
			Batch:       b.Position,
			Batches:     total,
			Ops:         len(b.Ops),
			FirstKey:    b.FirstKey(),
			LastKey:     b.LastKey(),
			TS:          time.Now().UTC().Unix(),
		}
		if err := c.journal.Append(e); err != nil {
			c.log.Warnf("append changelog for batch %d: %v", b.Position, err)
		}
	}
	if c.manifest != nil {
		m := manifest.Manifest{
			RunID:              run.RunID,
			Fingerprint:        run.Fingerprint,
			BatchSize:          run.BatchSize,
			TotalBatches:       total,
			LastCommittedBatch: b.Position,
		}
		if err := c.manifest.PublishLatest(m); err != nil {
			c.log.Warnf("publish manifest for batch %d: %v", b.Position, err)
		}
	}
}

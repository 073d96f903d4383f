// Package importer runs an LV import: map records, partition them into
// batches and commit the batches one by one.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"lvimport/internal/changelog"
	"lvimport/internal/docstore"
	"lvimport/internal/logger"
	"lvimport/internal/lv"
	"lvimport/internal/manifest"
	"lvimport/internal/metrics"
	"lvimport/internal/model"
)

// Resumer reports the first batch a run still has to commit. Implementations
// return 1 when nothing about the run is known.
type Resumer interface {
	ResumePoint(fingerprint string, totalBatches int) (int, error)
}

type Options struct {
	BatchSize    int // defaults to DefaultBatchSize, never above docstore.MaxBatchOps
	MaxTokens    int
	Dataset      string
	Workers      int
	OnInvalid    lv.Policy
	BatchTimeout time.Duration // 0 disables the per-batch deadline
	RunID        string

	Resumer  Resumer
	Logger   logger.Logger
	Metrics  *metrics.Registry
	Journal  changelog.Writer
	Manifest manifest.Publisher
}

type Importer struct {
	store     docstore.Writer
	opts      Options
	mapper    lv.Mapper
	committer *Committer
	log       logger.Logger
}

func New(store docstore.Writer, opts Options) (*Importer, error) {
	if store == nil {
		return nil, errors.New("nil store")
	}
	switch {
	case opts.BatchSize == 0:
		opts.BatchSize = DefaultBatchSize
	case opts.BatchSize < 0:
		return nil, errors.Errorf("batch size must be positive, got %d", opts.BatchSize)
	case opts.BatchSize > docstore.MaxBatchOps:
		return nil, errors.Errorf("batch size %d exceeds store limit %d", opts.BatchSize, docstore.MaxBatchOps)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.OnInvalid == "" {
		opts.OnInvalid = lv.PolicyAbort
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger
	}
	return &Importer{
		store:     store,
		opts:      opts,
		mapper:    lv.NewMapper(opts.Dataset, lv.NewTokenizer(opts.MaxTokens)),
		committer: NewCommitter(store, opts),
		log:       opts.Logger,
	}, nil
}

// Rejected is a record left out of the run under PolicySkip.
type Rejected struct {
	Index      int
	Identifier string
	Err        error
}

// Collision lists input records whose identifiers map to the same key. All of
// them are written in input order, so the last one wins.
type Collision struct {
	Key         string
	Indices     []int
	Identifiers []string
}

// Plan is the fully prepared, not yet committed run.
type Plan struct {
	RunID       string
	Fingerprint string
	Records     int
	Ops         []model.Op
	Batches     []Batch
	Rejected    []Rejected
	Collisions  []Collision
	Categories  []lv.CategoryCount
}

// Plan maps and partitions recs. Under PolicyAbort any invalid record fails
// the plan; the returned plan still lists every rejected record.
func (im *Importer) Plan(ctx context.Context, recs []model.Record) (*Plan, error) {
	ops, errs, err := im.mapAll(ctx, recs)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		RunID:      im.opts.RunID,
		Records:    len(recs),
		Ops:        make([]model.Op, 0, len(ops)),
		Categories: lv.SummarizeOrdered(recs),
	}
	for i, op := range ops {
		if errs[i] != nil {
			p.Rejected = append(p.Rejected, Rejected{Index: i, Identifier: recs[i].PositionNr, Err: errs[i]})
			continue
		}
		p.Ops = append(p.Ops, op)
	}
	if n := len(p.Rejected); n > 0 {
		if im.opts.Metrics != nil {
			im.opts.Metrics.RecordsRejected.Add(float64(n))
		}
		if im.opts.OnInvalid != lv.PolicySkip {
			return p, errors.Wrapf(p.Rejected[0].Err, "%d of %d records invalid", n, len(recs))
		}
		for _, r := range p.Rejected {
			im.log.Warnf("skipping record: %v", r.Err)
		}
	}

	p.Collisions = collisions(recs, ops, errs)
	for _, c := range p.Collisions {
		im.log.Warnf("key %s shared by records %v (%q); last one wins", c.Key, c.Indices, c.Identifiers)
	}
	if im.opts.Metrics != nil && len(p.Collisions) > 0 {
		im.opts.Metrics.KeyCollisions.Add(float64(len(p.Collisions)))
	}

	if p.Batches, err = Partition(p.Ops, im.opts.BatchSize); err != nil {
		return p, err
	}
	p.Fingerprint = Fingerprint(p.Ops, im.opts.BatchSize)
	return p, nil
}

// mapAll maps recs on opts.Workers goroutines. Each worker owns a contiguous
// range of the result slices, so no locking is needed.
func (im *Importer) mapAll(ctx context.Context, recs []model.Record) ([]model.Op, []error, error) {
	ops := make([]model.Op, len(recs))
	errs := make([]error, len(recs))
	workers := im.opts.Workers
	if workers > len(recs) {
		workers = len(recs)
	}
	if workers <= 1 {
		for i := range recs {
			ops[i], errs[i] = im.mapOne(i, recs[i])
		}
		return ops, errs, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(recs) + workers - 1) / workers
	for start := 0; start < len(recs); start += chunk {
		start, end := start, start+chunk
		if end > len(recs) {
			end = len(recs)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				ops[i], errs[i] = im.mapOne(i, recs[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ops, errs, nil
}

func (im *Importer) mapOne(i int, rec model.Record) (model.Op, error) {
	op, err := im.mapper.Map(rec)
	if err != nil {
		var ire *lv.InvalidRecordError
		if errors.As(err, &ire) {
			ire.Index = i
			ire.Identifier = rec.PositionNr
		}
		return model.Op{}, err
	}
	return op, nil
}

func collisions(recs []model.Record, ops []model.Op, errs []error) []Collision {
	seen := make(map[string]int)
	var out []Collision
	for i, op := range ops {
		if errs[i] != nil {
			continue
		}
		j, ok := seen[op.Key]
		if !ok {
			seen[op.Key] = len(out)
			out = append(out, Collision{Key: op.Key})
			j = len(out) - 1
		}
		out[j].Indices = append(out[j].Indices, i)
		out[j].Identifiers = append(out[j].Identifiers, recs[i].PositionNr)
	}
	dup := out[:0]
	for _, c := range out {
		if len(c.Indices) > 1 {
			dup = append(dup, c)
		}
	}
	if len(dup) == 0 {
		return nil
	}
	return dup
}

// Fingerprint identifies a run by its batch size and the ordered keys and
// field values of its ops. Sentinel timestamps hash by name only, so two
// imports of the same input share a fingerprint while any edited value
// changes it.
func Fingerprint(ops []model.Op, batchSize int) string {
	d := xxhash.New()
	_, _ = fmt.Fprintf(d, "%d\n", batchSize)
	for _, op := range ops {
		fields, server := op.Doc.Fields()
		_, _ = fmt.Fprintf(d, "%s\x00%v\x00%v\n", op.Key, fields, server)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Execute commits a plan. The report is never nil, also on failure.
func (im *Importer) Execute(ctx context.Context, p *Plan) (*Report, error) {
	rep := newReport(p)
	start := 1
	if im.opts.Resumer != nil && len(p.Batches) > 0 {
		s, err := im.opts.Resumer.ResumePoint(p.Fingerprint, len(p.Batches))
		if err != nil {
			return rep, errors.Wrap(err, "resolve resume point")
		}
		if s > 1 {
			im.log.Infof("resuming run %s at batch %d/%d", p.Fingerprint, s, len(p.Batches))
			start = s
		}
	}
	rep.StartBatch = start

	im.log.Infof("importing %d documents in %d batches", len(p.Ops), len(p.Batches))
	run := RunInfo{RunID: p.RunID, Fingerprint: p.Fingerprint, BatchSize: im.opts.BatchSize}
	outcomes, err := im.committer.Commit(ctx, run, p.Batches, start)
	rep.Outcomes = outcomes
	if err != nil {
		return rep, err
	}
	im.log.Infof("%s", rep.Summary())
	return rep, nil
}

// Run plans and executes recs.
func (im *Importer) Run(ctx context.Context, recs []model.Record) (*Report, error) {
	p, err := im.Plan(ctx, recs)
	if err != nil {
		if p == nil {
			return &Report{RunID: im.opts.RunID, Records: len(recs)}, err
		}
		return newReport(p), err
	}
	return im.Execute(ctx, p)
}

package importer

import (
	"github.com/pkg/errors"

	"lvimport/internal/model"
)

// DefaultBatchSize matches the store's per-call operation limit.
const DefaultBatchSize = 500

// Batch is an ordered group of upserts committed atomically.
type Batch struct {
	Position int // 1-based
	Ops      []model.Op
}

// FirstKey returns the key of the first op, or "" for an empty batch.
func (b Batch) FirstKey() string {
	if len(b.Ops) == 0 {
		return ""
	}
	return b.Ops[0].Key
}

// LastKey returns the key of the last op, or "" for an empty batch.
func (b Batch) LastKey() string {
	if len(b.Ops) == 0 {
		return ""
	}
	return b.Ops[len(b.Ops)-1].Key
}

// Partition splits ops into consecutive batches of at most size ops. Op i
// lands in batch i/size; empty input yields no batches.
func Partition(ops []model.Op, size int) ([]Batch, error) {
	if size <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", size)
	}
	n := (len(ops) + size - 1) / size
	batches := make([]Batch, 0, n)
	for start := 0; start < len(ops); start += size {
		end := start + size
		if end > len(ops) {
			end = len(ops)
		}
		batches = append(batches, Batch{Position: len(batches) + 1, Ops: ops[start:end:end]})
	}
	return batches, nil
}

package importer

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrBatchCommit is matched by every *BatchCommitError.
var ErrBatchCommit = errors.New("batch commit failed")

// BatchCommitError reports the batch whose upsert failed. Batches before
// Position are committed; Position and later are not.
type BatchCommitError struct {
	Position int
	Total    int
	Ops      int
	Cause    error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("batch %d/%d (%d ops) failed: %v", e.Position, e.Total, e.Ops, e.Cause)
}

func (e *BatchCommitError) Unwrap() error { return e.Cause }

func (e *BatchCommitError) Is(target error) bool { return target == ErrBatchCommit }

// Committed is the number of batches known to be committed before the failure.
func (e *BatchCommitError) Committed() int { return e.Position - 1 }

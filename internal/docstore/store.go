package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lvimport/internal/model"
)

// MaxBatchOps is the most operations one UpsertBatch call may carry.
const MaxBatchOps = 500

// ErrBatchTooLarge is returned for batches above MaxBatchOps.
var ErrBatchTooLarge = errors.New("batch exceeds max operations")

// Writer applies upsert batches. Each call is atomic: all operations are
// applied or none. Operations merge their fields into any existing document
// and server timestamp sentinels are resolved at commit.
type Writer interface {
	UpsertBatch(ctx context.Context, ops []model.Op) error
}

// Store is a Writer that can also be read back.
type Store interface {
	Writer
	Get(ctx context.Context, key string) (map[string]any, bool, error)
	Range(ctx context.Context, fn func(key string, doc map[string]any) error) error
	Close() error
}

// Now is the commit clock. Split for testability.
var Now = func() time.Time { return time.Now().UTC() }

func checkBatch(ctx context.Context, ops []model.Op) error {
	if len(ops) > MaxBatchOps {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(ops), MaxBatchOps)
	}
	return ctx.Err()
}

// merge overlays fields onto cur. Top-level fields present in the update
// replace the stored value; others are left alone.
func merge(cur, fields map[string]any) map[string]any {
	out := make(map[string]any, len(cur)+len(fields))
	for k, v := range cur {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func encodeDoc(doc map[string]any) ([]byte, error) { return json.Marshal(doc) }

func decodeDoc(val []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(val, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// InMemoryStore is a thread-safe map store. Documents are kept encoded so
// reads see the same representation as the persistent backends.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte)}
}

func (s *InMemoryStore) UpsertBatch(ctx context.Context, ops []model.Op) error {
	if err := checkBatch(ctx, ops); err != nil {
		return err
	}
	now := Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string][]byte, len(ops))
	for _, op := range ops {
		var cur map[string]any
		raw, ok := pending[op.Key]
		if !ok {
			raw, ok = s.data[op.Key]
		}
		if ok {
			d, err := decodeDoc(raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", op.Key, err)
			}
			cur = d
		}
		b, err := encodeDoc(merge(cur, op.Doc.Resolve(now)))
		if err != nil {
			return fmt.Errorf("encode %s: %w", op.Key, err)
		}
		pending[op.Key] = b
	}
	for k, v := range pending {
		s.data[k] = v
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (map[string]any, bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Range visits documents in key order.
func (s *InMemoryStore) Range(ctx context.Context, fn func(key string, doc map[string]any) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, ok, err := s.Get(ctx, k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(k, doc); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

// Len reports the number of stored documents.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *InMemoryStore) Close() error { return nil }

package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"lvimport/internal/model"
)

// PebbleStore implements Store using PebbleDB. Documents of one collection
// share the key prefix "<collection>/".
type PebbleStore struct {
	db     *pebble.DB
	prefix []byte
}

func NewPebbleStore(dir, collection string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    12,
		WALBytesPerSync:          1 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d, prefix: []byte(collection + "/")}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) key(k string) []byte {
	return append(append([]byte(nil), p.prefix...), k...)
}

// pebbleReader is satisfied by *pebble.DB and indexed *pebble.Batch.
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func getDoc(r pebbleReader, k []byte) (map[string]any, error) {
	v, closer, err := r.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeDoc(v)
}

// UpsertBatch merges every op through an indexed batch, so later ops in the
// same batch see earlier ones, and commits it with a synced WAL write.
func (p *PebbleStore) UpsertBatch(ctx context.Context, ops []model.Op) error {
	if err := checkBatch(ctx, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	now := Now()
	b := p.db.NewIndexedBatch()
	defer b.Close()
	for _, op := range ops {
		k := p.key(op.Key)
		cur, err := getDoc(b, k)
		if err != nil {
			return fmt.Errorf("read %s: %w", op.Key, err)
		}
		val, err := encodeDoc(merge(cur, op.Doc.Resolve(now)))
		if err != nil {
			return fmt.Errorf("encode %s: %w", op.Key, err)
		}
		if err := b.Set(k, val, nil); err != nil {
			return fmt.Errorf("set %s: %w", op.Key, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

func (p *PebbleStore) Get(_ context.Context, key string) (map[string]any, bool, error) {
	doc, err := getDoc(p.db, p.key(key))
	if err != nil {
		return nil, false, err
	}
	return doc, doc != nil, nil
}

func (p *PebbleStore) Range(ctx context.Context, fn func(key string, doc map[string]any) error) error {
	upper := append([]byte(nil), p.prefix...)
	upper[len(upper)-1]++
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: p.prefix, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := string(it.Key()[len(p.prefix):])
		doc, err := decodeDoc(append([]byte(nil), it.Value()...))
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if err := fn(k, doc); err != nil {
			return err
		}
	}
	return it.Error()
}

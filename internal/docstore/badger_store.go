package docstore

import (
	"context"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"lvimport/internal/model"
)

// BadgerStore implements Store using BadgerDB. One UpsertBatch is one
// read-write transaction.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
}

func NewBadgerStore(dir, collection string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db, prefix: []byte(collection + "/")}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func (b *BadgerStore) key(k string) []byte {
	return append(append([]byte(nil), b.prefix...), k...)
}

func txnDoc(txn *badger.Txn, k []byte) (map[string]any, error) {
	item, err := txn.Get(k)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeDoc(v)
}

func (b *BadgerStore) UpsertBatch(ctx context.Context, ops []model.Op) error {
	if err := checkBatch(ctx, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	now := Now()
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			k := b.key(op.Key)
			cur, err := txnDoc(txn, k)
			if err != nil {
				return fmt.Errorf("read %s: %w", op.Key, err)
			}
			val, err := encodeDoc(merge(cur, op.Doc.Resolve(now)))
			if err != nil {
				return fmt.Errorf("encode %s: %w", op.Key, err)
			}
			if err := txn.Set(k, val); err != nil {
				return fmt.Errorf("set %s: %w", op.Key, err)
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return fmt.Errorf("badger update: %w", err)
	}
	return nil
}

func (b *BadgerStore) Get(_ context.Context, key string) (map[string]any, bool, error) {
	var doc map[string]any
	err := b.db.View(func(txn *badger.Txn) error {
		d, err := txnDoc(txn, b.key(key))
		doc = d
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return doc, doc != nil, nil
}

func (b *BadgerStore) Range(ctx context.Context, fn func(key string, doc map[string]any) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(b.prefix); it.ValidForPrefix(b.prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			k := string(item.KeyCopy(nil)[len(b.prefix):])
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			doc, err := decodeDoc(v)
			if err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			if err := fn(k, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

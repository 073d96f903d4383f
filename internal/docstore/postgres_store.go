package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lvimport/internal/model"
)

// PostgresStore keeps documents as JSONB rows keyed by (collection, key).
// Merges use the jsonb concatenation operator and sentinel timestamps are
// assigned from the transaction's now(), so every document of a batch
// carries the same commit time.
type PostgresStore struct {
	db         *sql.DB
	collection string
}

const ensureDocumentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
  collection text NOT NULL,
  key text NOT NULL,
  doc jsonb NOT NULL,
  PRIMARY KEY (collection, key)
);
`

const upsertDocumentSQL = `
INSERT INTO documents (collection, key, doc)
VALUES ($1, $2, $3::jsonb || COALESCE(
  (SELECT jsonb_object_agg(f, to_jsonb(now())) FROM unnest($4::text[]) AS f), '{}'::jsonb))
ON CONFLICT (collection, key) DO UPDATE SET doc = documents.doc || EXCLUDED.doc
`

// NewPostgresStore connects with dsn and ensures the schema exists.
func NewPostgresStore(dsn, collection string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewPostgresStoreWithDB(db, collection)
}

// NewPostgresStoreWithDB reuses an existing *sql.DB.
func NewPostgresStoreWithDB(db *sql.DB, collection string) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if collection == "" {
		return nil, errors.New("collection is required")
	}
	if _, err := db.Exec(ensureDocumentsDDL); err != nil {
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	return &PostgresStore{db: db, collection: collection}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// rowArgs returns the JSON payload without sentinel fields and the names of
// the fields the database has to stamp.
func rowArgs(doc model.Document) ([]byte, interface{}, error) {
	fields, server := doc.Fields()
	payload, err := encodeDoc(fields)
	if err != nil {
		return nil, nil, err
	}
	if server == nil {
		server = []string{}
	}
	return payload, pq.Array(server), nil
}

func (s *PostgresStore) UpsertBatch(ctx context.Context, ops []model.Op) error {
	if err := checkBatch(ctx, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertDocumentSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, op := range ops {
		payload, server, err := rowArgs(op.Doc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, op.Key, string(payload), server); err != nil {
			return fmt.Errorf("upsert %s: %w", op.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM documents WHERE collection=$1 AND key=$2`, s.collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *PostgresStore) Range(ctx context.Context, fn func(key string, doc map[string]any) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, doc FROM documents WHERE collection=$1 ORDER BY key`, s.collection)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return err
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(key, doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

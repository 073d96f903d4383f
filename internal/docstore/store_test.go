package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lvimport/internal/model"
)

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	old := Now
	Now = func() time.Time { return at }
	t.Cleanup(func() { Now = old })
}

func op(key, kurztext string, menge float64) model.Op {
	return model.Op{Key: key, Doc: model.Document{
		PositionNr:  key,
		Kurztext:    kurztext,
		Menge:       menge,
		Suchwoerter: []string{kurztext},
		Aktiv:       true,
		CreatedAt:   model.ServerTimestamp(),
		UpdatedAt:   model.ServerTimestamp(),
	}}
}

// exerciseStore runs the shared contract checks against any Store.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedNow(t, at)

	if err := st.UpsertBatch(ctx, []model.Op{op("1_1_10", "Rohr", 1), op("1_1_20", "Bogen", 2)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	doc, ok, err := st.Get(ctx, "1_1_10")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if doc[model.FieldKurztext] != "Rohr" || doc[model.FieldMenge] != 1.0 || doc[model.FieldAktiv] != true {
		t.Fatalf("unexpected doc: %v", doc)
	}
	if doc[model.FieldCreatedAt] != at.Format(time.RFC3339Nano) {
		t.Fatalf("created_at=%v want commit time", doc[model.FieldCreatedAt])
	}

	// re-import overwrites known fields, keeps one document per key
	if err := st.UpsertBatch(ctx, []model.Op{op("1_1_10", "Rohr DN50", 3)}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	doc, _, _ = st.Get(ctx, "1_1_10")
	if doc[model.FieldKurztext] != "Rohr DN50" || doc[model.FieldMenge] != 3.0 {
		t.Fatalf("not merged: %v", doc)
	}

	// duplicate keys inside one batch: the later op wins
	if err := st.UpsertBatch(ctx, []model.Op{op("2_1", "erst", 1), op("2_1", "dann", 2)}); err != nil {
		t.Fatalf("dup upsert: %v", err)
	}
	doc, _, _ = st.Get(ctx, "2_1")
	if doc[model.FieldKurztext] != "dann" {
		t.Fatalf("later op should win: %v", doc)
	}

	if _, ok, err := st.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	var keys []string
	if err := st.Range(ctx, func(key string, doc map[string]any) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		t.Fatalf("range: %v", err)
	}
	if fmt.Sprint(keys) != "[1_1_10 1_1_20 2_1]" {
		t.Fatalf("range keys=%v", keys)
	}

	big := make([]model.Op, MaxBatchOps+1)
	for i := range big {
		big[i] = op(fmt.Sprintf("k%d", i), "x", 0)
	}
	if err := st.UpsertBatch(ctx, big); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("want ErrBatchTooLarge, got %v", err)
	}
}

func TestInMemoryStore_Contract(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestInMemoryStore_MergeKeepsForeignFields(t *testing.T) {
	st := NewInMemoryStore()
	st.data["5_1"] = []byte(`{"notiz":"vom Büro","kurztext":"alt"}`)
	if err := st.UpsertBatch(context.Background(), []model.Op{op("5_1", "neu", 1)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	doc, _, _ := st.Get(context.Background(), "5_1")
	if doc["notiz"] != "vom Büro" || doc[model.FieldKurztext] != "neu" {
		t.Fatalf("merge lost fields: %v", doc)
	}
	if st.Len() != 1 {
		t.Fatalf("len=%d", st.Len())
	}
}

func TestInMemoryStore_CanceledContext(t *testing.T) {
	st := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.UpsertBatch(ctx, []model.Op{op("a", "b", 1)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
	if st.Len() != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestPebbleStore_Contract(t *testing.T) {
	st, err := NewPebbleStore(t.TempDir(), "lv_positionen")
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	exerciseStore(t, st)
}

func TestPebbleStore_CollectionsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir, "lv_positionen")
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	if err := st.UpsertBatch(context.Background(), []model.Op{op("1", "a", 1)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_ = st.Close()

	other, err := NewPebbleStore(dir, "lv_positionen_alt")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = other.Close() })
	n := 0
	_ = other.Range(context.Background(), func(string, map[string]any) error { n++; return nil })
	if n != 0 {
		t.Fatalf("other collection sees %d docs", n)
	}
}

func TestBadgerStore_Contract(t *testing.T) {
	st, err := NewBadgerStore(t.TempDir(), "lv_positionen")
	if err != nil {
		t.Fatalf("badger open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	exerciseStore(t, st)
}

// Package snapshot exports a document collection to JSON files.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const documentsFile = "documents.json"

// Source is the read side of a document store.
type Source interface {
	Range(ctx context.Context, fn func(key string, doc map[string]any) error) error
}

type Exporter interface {
	Export(ctx context.Context, exportID string, src Source) (int, error)
}

type FilesystemExporter struct {
	baseDir string
}

func NewFilesystemExporter(baseDir string) *FilesystemExporter {
	return &FilesystemExporter{baseDir: baseDir}
}

// Path returns the file an export with exportID is written to.
func (f *FilesystemExporter) Path(exportID string) string {
	return filepath.Join(f.baseDir, exportID, documentsFile)
}

// Export writes every document of src as one JSON object keyed by document
// key and returns the number of documents written. The file only appears
// once it is complete.
func (f *FilesystemExporter) Export(ctx context.Context, exportID string, src Source) (int, error) {
	if exportID == "" {
		return 0, fmt.Errorf("empty export id")
	}
	if err := os.MkdirAll(filepath.Join(f.baseDir, exportID), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	dump := make(map[string]map[string]any)
	if err := src.Range(ctx, func(key string, doc map[string]any) error {
		dump[key] = doc
		return nil
	}); err != nil {
		return 0, fmt.Errorf("range: %w", err)
	}

	file := f.Path(exportID)
	tmp := file + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		out.Close()
		return 0, fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	return len(dump), nil
}

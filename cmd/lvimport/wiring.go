package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"lvimport/internal/changelog"
	"lvimport/internal/config"
	"lvimport/internal/docstore"
	"lvimport/internal/logger"
	"lvimport/internal/manifest"
	"lvimport/internal/metrics"
)

const changelogFile = "lvimport.jsonl"

// openedStore is the configured backend. reader is nil for write-only
// backends such as kafka.
type openedStore struct {
	writer docstore.Writer
	reader docstore.Store
	close  func() error
}

func openStore(ctx context.Context, cfg *config.Config) (*openedStore, error) {
	switch cfg.Store {
	case config.StorePebble:
		s, err := docstore.NewPebbleStore(cfg.PebbleDir, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("init pebble: %w", err)
		}
		return &openedStore{writer: s, reader: s, close: s.Close}, nil
	case config.StoreBadger:
		s, err := docstore.NewBadgerStore(cfg.BadgerDir, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("init badger: %w", err)
		}
		return &openedStore{writer: s, reader: s, close: s.Close}, nil
	case config.StorePostgres:
		s, err := docstore.NewPostgresStore(cfg.PostgresDSN, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return &openedStore{writer: s, reader: s, close: s.Close}, nil
	case config.StoreKafka:
		s, err := docstore.NewKafkaStore(ctx, cfg.KafkaBootstrap, cfg.KafkaTopic, cfg.KafkaTxID)
		if err != nil {
			return nil, fmt.Errorf("init kafka store: %w", err)
		}
		return &openedStore{writer: s, close: s.Close}, nil
	default:
		s := docstore.NewInMemoryStore()
		return &openedStore{writer: s, reader: s, close: s.Close}, nil
	}
}

func changelogPath(cfg *config.Config) string {
	return filepath.Join(cfg.ChangelogDir, changelogFile)
}

// newJournal returns nil when the changelog is disabled.
func newJournal(cfg *config.Config) (changelog.Writer, error) {
	var journal changelog.Writer
	if cfg.ChangelogSink == config.SinkFile || cfg.ChangelogSink == config.SinkBoth {
		fw, err := changelog.NewFileWriter(cfg.ChangelogDir, changelogFile)
		if err != nil {
			return nil, fmt.Errorf("init changelog file: %w", err)
		}
		journal = fw
	}
	if cfg.ChangelogSink == config.SinkKafka || cfg.ChangelogSink == config.SinkBoth {
		kw := changelog.NewKafkaWriter(cfg.KafkaBootstrap, cfg.TopicChangelog)
		if journal == nil {
			journal = kw
		} else {
			journal = changelog.NewMultiWriter(journal, kw)
		}
	}
	return journal, nil
}

// newManifestPublisher returns nil when the manifest is disabled.
func newManifestPublisher(cfg *config.Config) manifest.Publisher {
	fs := manifest.NewFilesystemManifest(cfg.ManifestDir)
	switch cfg.ManifestSink {
	case config.SinkFile:
		return fs
	case config.SinkKafka:
		return manifest.NewKafkaManifest(cfg.KafkaBootstrap, cfg.TopicManifest, manifest.DefaultKey)
	case config.SinkBoth:
		return manifest.MultiPublisher(fs, manifest.NewKafkaManifest(cfg.KafkaBootstrap, cfg.TopicManifest, manifest.DefaultKey))
	}
	return nil
}

func newManifestReader(cfg *config.Config) manifest.Reader {
	if cfg.ManifestSource == config.SinkKafka {
		return manifest.NewKafkaReader(cfg.KafkaBootstrap, cfg.TopicManifest, manifest.DefaultKey)
	}
	return manifest.NewFilesystemManifest(cfg.ManifestDir)
}

// serveMetrics exposes /metrics and /healthz until the returned stop func runs.
func serveMetrics(addr string, reg *metrics.Registry, log logger.Logger) (stop func()) {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	log.Infof("serving metrics on %s", addr)
	return func() { _ = srv.Close() }
}

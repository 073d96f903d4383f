package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lvimport/internal/config"
	"lvimport/internal/docstore"
	"lvimport/internal/importer"
	"lvimport/internal/logger"
	"lvimport/internal/metrics"
	"lvimport/internal/model"
	"lvimport/internal/restore"
	"lvimport/internal/snapshot"
)

func newRunCommand(cfg *config.Config, getLog func() logger.Logger, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Import the input file.",
		Long: `
Maps every position of the input file to a document and commits the documents
in batches, one batch at a time. If a batch fails the run stops; the report
lists the committed batches and, with --resume, the next run continues at the
first uncommitted batch.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runImport(ctx, cfg, getLog(), stdout)
		},
	}
}

func readInput(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return model.ReadRecords(f)
}

func importerOptions(cfg *config.Config, log logger.Logger, reg *metrics.Registry) importer.Options {
	return importer.Options{
		BatchSize:    cfg.BatchSize,
		MaxTokens:    cfg.MaxTokens,
		Dataset:      cfg.DatasetName,
		Workers:      cfg.Workers,
		OnInvalid:    cfg.Policy(),
		BatchTimeout: cfg.BatchTimeout,
		Logger:       log,
		Metrics:      reg,
	}
}

func newImporter(cfg *config.Config, w docstore.Writer, log logger.Logger, reg *metrics.Registry) (*importer.Importer, error) {
	opts := importerOptions(cfg, log, reg)
	journal, err := newJournal(cfg)
	if err != nil {
		return nil, err
	}
	opts.Journal = journal
	opts.Manifest = newManifestPublisher(cfg)
	if cfg.Resume {
		opts.Resumer = restore.NewResolver(newManifestReader(cfg), changelogPath(cfg))
	}
	return importer.New(w, opts)
}

func runImport(ctx context.Context, cfg *config.Config, log logger.Logger, stdout io.Writer) error {
	recs, err := readInput(cfg.Input)
	if err != nil {
		return err
	}
	log.Infof("read %d positions from %s", len(recs), cfg.Input)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warnf("close store: %v", err)
		}
	}()

	reg := metrics.NewRegistry()
	stopMetrics := serveMetrics(cfg.MetricsAddr, reg, log)
	defer stopMetrics()

	im, err := newImporter(cfg, st.writer, log.WithPrefix("import: "), reg)
	if err != nil {
		return err
	}
	rep, runErr := im.Run(ctx, recs)
	if rep != nil {
		fmt.Fprintln(stdout, rep.Summary())
	}
	if runErr != nil {
		return runErr
	}

	if cfg.ExportDir != "" {
		if st.reader == nil {
			return fmt.Errorf("store %s cannot be exported", cfg.Store)
		}
		exp := snapshot.NewFilesystemExporter(cfg.ExportDir)
		n, err := exp.Export(ctx, rep.RunID, st.reader)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		log.Infof("exported %d documents to %s", n, exp.Path(rep.RunID))
	}
	return nil
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lvimport/internal/config"
	"lvimport/internal/docstore"
	"lvimport/internal/importer"
	"lvimport/internal/logger"
	"lvimport/internal/manifest"
	"lvimport/internal/restore"
)

func newStatusCommand(cfg *config.Config, getLog func() logger.Logger, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest manifest and where a resumed run would start.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManifestReader(cfg).ReadLatest()
			switch {
			case errors.Is(err, manifest.ErrNoManifest):
				fmt.Fprintln(stdout, "no manifest published yet")
			case err != nil:
				return fmt.Errorf("read manifest: %w", err)
			default:
				b, err := json.MarshalIndent(m, "", "  ")
				if err != nil {
					return fmt.Errorf("encode manifest: %w", err)
				}
				fmt.Fprintln(stdout, string(b))
			}

			recs, err := readInput(cfg.Input)
			if err != nil {
				getLog().Warnf("skipping resume point: %v", err)
				return nil
			}
			// Planning needs no store writes.
			im, err := importer.New(docstore.NewInMemoryStore(), importerOptions(cfg, logger.NopLogger, nil))
			if err != nil {
				return err
			}
			plan, err := im.Plan(cmd.Context(), recs)
			if err != nil {
				return err
			}
			next, err := restore.NewResolver(newManifestReader(cfg), changelogPath(cfg)).ResumePoint(plan.Fingerprint, len(plan.Batches))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "input %s: fingerprint %s, %d batches, resume at batch %d\n", cfg.Input, plan.Fingerprint, len(plan.Batches), next)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"lvimport/internal/config"
	"lvimport/internal/logger"
	"lvimport/internal/snapshot"
)

func newExportCommand(cfg *config.Config, getLog func() logger.Logger, stdout io.Writer) *cobra.Command {
	var id string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the collection to JSON.",
		Long: `
Writes every document of the collection to EXPORT-DIR/ID/documents.json as one
JSON object keyed by document key. The kafka store is write-only and cannot be
exported.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ExportDir == "" {
				return fmt.Errorf("export-dir is required")
			}
			if id == "" {
				id = "export-" + time.Now().UTC().Format("20060102T150405Z")
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()
			if st.reader == nil {
				return fmt.Errorf("store %s cannot be exported", cfg.Store)
			}

			exp := snapshot.NewFilesystemExporter(cfg.ExportDir)
			n, err := exp.Export(cmd.Context(), id, st.reader)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			getLog().Infof("exported %d documents from %s", n, cfg.Collection)
			fmt.Fprintln(stdout, exp.Path(id))
			return nil
		},
	}
	exportCmd.Flags().StringVar(&id, "id", "", "export id, defaults to a UTC timestamp")
	return exportCmd
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
	"github.com/JoaoPedroMBiofy/ingestor/internal/temporal"
)

func newSubmitCmd(flags *rootFlags) *cobra.Command {
	var (
		f    ingestFlags
		wait bool
	)

	cmd := &cobra.Command{
		Use:   "submit <pdf>",
		Short: "Queue a PDF for ingestion by a Temporal worker",
		Long: `Copy the PDF into the spool directory and start an IngestDocumentWorkflow.
The spool directory must be shared with the workers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			spooled, err := temporal.Spool(cfg.Temporal.SpoolDir, args[0])
			if err != nil {
				return err
			}
			if abs, err := filepath.Abs(spooled); err == nil {
				spooled = abs
			}

			c, err := temporal.Dial(cfg.Temporal.Host, cfg.Temporal.Namespace, logger)
			if err != nil {
				_ = os.RemoveAll(filepath.Dir(spooled))
				return err
			}
			defer c.Close()

			run, err := temporal.Submit(cmd.Context(), c, cfg.Temporal.TaskQueue, temporal.IngestInput{
				PDFPath:     spooled,
				SourceName:  filepath.Base(args[0]),
				Collection:  f.collection,
				Strategy:    f.strategy,
				Mode:        f.mode,
				RemoveAfter: true,
			})
			if err != nil {
				_ = os.RemoveAll(filepath.Dir(spooled))
				return err
			}
			fmt.Printf("Workflow started: %s (run %s)\n", run.GetID(), run.GetRunID())

			if !wait {
				return nil
			}
			var res ingest.Result
			if err := run.Get(cmd.Context(), &res); err != nil {
				return fmt.Errorf("ingestion failed (%s): %w", temporal.FailureKind(err), err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the workflow and print its result")
	return cmd
}

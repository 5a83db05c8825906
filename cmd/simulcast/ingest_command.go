package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.migrate(); err != nil {
				return err
			}

			report, err := a.job.Run(cmd.Context())
			if report != nil {
				run := report.Run
				fmt.Fprintf(cmd.OutOrStdout(), "%s: fetched=%d ingested=%d skipped=%d failed=%d classified=%d batches=%d\n",
					run.Status, run.Fetched, run.Ingested, run.Skipped, run.Failed, report.Classified, len(report.Batches))

				keys := make([]string, 0, len(report.FetchErrors))
				for k := range report.FetchErrors {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", k, report.FetchErrors[k])
				}
			}
			return err
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/daemon"
	"github.com/tallyhq/tally/internal/domain"
	"github.com/tallyhq/tally/internal/infra/memory"
	"github.com/tallyhq/tally/internal/ingest"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().Bool("dry-run", false, "Validate and dedup against an empty in-memory ledger, writing nothing")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <candidates.json>",
	Short: "Ingest a batch of candidate transactions",
	Long: `Ingest reads a JSON array of candidate transactions and runs one
ingestion pass: shared-expense candidates reconcile against existing rows
by external id, duplicates are skipped, and the survivors are inserted in
chronological order. The printed report accounts for every candidate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var candidates []domain.Candidate
		if err := json.Unmarshal(data, &candidates); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		var report domain.IngestReport
		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			cfg, err := daemon.LoadConfig(configPath)
			if err != nil {
				return err
			}
			pipeline := ingest.NewPipeline(memory.NewStore(), cfg.Ledger.SharedAccount)
			pipeline.SetChunkSize(cfg.Ledger.ChunkSize)
			report = pipeline.Run(cmd.Context(), candidates)
		} else {
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.close()
			report = c.pipeline.Run(cmd.Context(), candidates)
		}

		fmt.Printf("inserted: %d\nupdated:  %d\nskipped:  %d\nerrors:   %d\n",
			report.InsertedCount, report.UpdatedCount, report.SkippedCount, report.ErrorCount)
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
		if !report.Success {
			return fmt.Errorf("%d candidates failed", report.ErrorCount)
		}
		return nil
	},
}

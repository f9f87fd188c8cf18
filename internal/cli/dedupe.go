package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/ingest"
)

func init() {
	rootCmd.AddCommand(dedupeCmd)
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Soft-delete losers of identity-key duplicate groups",
	Long: `Dedupe is the offline cleanup for duplicates that concurrent ingestion
runs can race into the ledger. For each set of rows sharing one identity
key it keeps the earliest row and soft-deletes the rest. Rows are never
hard-deleted; a mistake can be restored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.close()

		removed, err := ingest.CleanupDuplicates(cmd.Context(), c.db, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Printf("soft-deleted %d duplicate rows\n", removed)
		return nil
	},
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <entry-id>",
	Short: "Undo a soft delete",
	Long: `Restore clears the soft-delete flag on an entry, bringing it back into
list views and settlement. This is the undo for "tally dedupe" and for
deletions made through the API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.close()

		if err := c.db.Restore(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("restored %s\n", args[0])
		return nil
	},
}

package cli

import (
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/api"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.close()

		server := api.NewServer(c.db, c.pipeline, c.calculator)
		if c.cfg.API.MetricsEnabled {
			server.EnableMetrics()
		}

		addr := c.cfg.API.Addr()
		log.Printf("[serve] listening on %s (db %s)", addr, c.cfg.DB.Path)
		return http.ListenAndServe(addr, server.Handler())
	},
}

// Package cli implements the tally command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/daemon"
	"github.com/tallyhq/tally/internal/events"
	"github.com/tallyhq/tally/internal/infra/sqlite"
	"github.com/tallyhq/tally/internal/ingest"
	"github.com/tallyhq/tally/internal/settle"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Personal finance ledger with dedup, reconciliation, and settlement",
	Long: `tally ingests transactions from partially unreliable sources into one
append-only ledger, converges repeated overlapping ingestion runs on one row
per real-world economic event, and computes who owes whom across shared
expenses.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tally.toml", "Path to the TOML config file")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// core is the wired-up service bundle shared by the commands.
type core struct {
	cfg        daemon.Config
	db         *sqlite.DB
	pipeline   *ingest.Pipeline
	calculator *settle.Calculator
}

// openCore loads config and constructs the services. Dependencies are
// built once here and passed by reference; nothing global.
func openCore() (*core, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.DB.Path, err)
	}

	pipeline := ingest.NewPipeline(db, cfg.Ledger.SharedAccount)
	pipeline.SetChunkSize(cfg.Ledger.ChunkSize)
	if cfg.Kafka.Enabled {
		pipeline.SetPublisher(events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}

	calculator := settle.NewCalculator(db, cfg.Ledger.SharedAccount, cfg.Ledger.OwnerAliases)
	calculator.SetInferPayer(cfg.Ledger.InferPayer)

	return &core{cfg: cfg, db: db, pipeline: pipeline, calculator: calculator}, nil
}

func (c *core) close() {
	if err := c.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close ledger: %v\n", err)
	}
}

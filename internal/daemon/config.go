// Package daemon holds the process configuration: TOML file over built-in
// defaults, with environment variables (optionally from a .env file)
// overriding both.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the full daemon configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	DB     DBConfig     `toml:"db"`
	Ledger LedgerConfig `toml:"ledger"`
	Kafka  KafkaConfig  `toml:"kafka"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// Addr is the host:port the server binds.
func (a APIConfig) Addr() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// DBConfig configures ledger storage.
type DBConfig struct {
	Path string `toml:"path"`
}

// LedgerConfig configures the consistency core.
type LedgerConfig struct {
	// SharedAccount is the account name of the shared-expense provider;
	// its candidates reconcile by external id.
	SharedAccount string `toml:"shared_account"`
	// OwnerAliases are spellings of the ledger owner excluded from the
	// counterparty set ("me" is always excluded).
	OwnerAliases []string `toml:"owner_aliases"`
	// ChunkSize bounds rows per insert transaction.
	ChunkSize int `toml:"chunk_size"`
	// InferPayer enables the largest-paid-share payer heuristic.
	InferPayer bool `toml:"infer_payer"`
}

// KafkaConfig configures the optional event publisher.
type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			MetricsEnabled: true,
		},
		DB: DBConfig{
			Path: "tally.db",
		},
		Ledger: LedgerConfig{
			SharedAccount: "Splitwise",
			ChunkSize:     200,
			InferPayer:    true,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Topic:   "tally.ingest.completed",
		},
	}
}

// LoadConfig builds the effective configuration: defaults, then the TOML
// file at path (when it exists), then environment overrides. A missing
// .env file is not an error.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)

	if cfg.Ledger.ChunkSize <= 0 {
		return cfg, fmt.Errorf("ledger.chunk_size must be positive, got %d", cfg.Ledger.ChunkSize)
	}
	if cfg.Ledger.SharedAccount == "" {
		return cfg, fmt.Errorf("ledger.shared_account must not be empty")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TALLY_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("TALLY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("TALLY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("TALLY_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}

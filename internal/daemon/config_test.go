package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8420)
	}
	if cfg.Ledger.SharedAccount != "Splitwise" {
		t.Errorf("Ledger.SharedAccount = %q, want %q", cfg.Ledger.SharedAccount, "Splitwise")
	}
	if cfg.Ledger.ChunkSize != 200 {
		t.Errorf("Ledger.ChunkSize = %d, want %d", cfg.Ledger.ChunkSize, 200)
	}
	if !cfg.Ledger.InferPayer {
		t.Error("Ledger.InferPayer should be true by default")
	}
	if cfg.Kafka.Enabled {
		t.Error("Kafka.Enabled should be false by default (opt-in)")
	}
}

func TestAPIConfig_Addr(t *testing.T) {
	a := APIConfig{Host: "0.0.0.0", Port: 9000}
	if got := a.Addr(); got != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q, want %q", got, "0.0.0.0:9000")
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tally.toml")
	body := `
[api]
port = 9999

[ledger]
shared_account = "SharedApp"
owner_aliases = ["David", "Dave"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, default should survive partial file", cfg.API.Host)
	}
	if cfg.Ledger.SharedAccount != "SharedApp" {
		t.Errorf("SharedAccount = %q, want SharedApp", cfg.Ledger.SharedAccount)
	}
	if len(cfg.Ledger.OwnerAliases) != 2 {
		t.Errorf("OwnerAliases = %v, want 2 aliases", cfg.Ledger.OwnerAliases)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TALLY_DB_PATH", "/tmp/other.db")
	t.Setenv("TALLY_API_PORT", "7001")
	t.Setenv("TALLY_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.DB.Path != "/tmp/other.db" {
		t.Errorf("DB.Path = %q, want env override", cfg.DB.Path)
	}
	if cfg.API.Port != 7001 {
		t.Errorf("API.Port = %d, want 7001", cfg.API.Port)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Kafka = %+v, want enabled with 2 brokers", cfg.Kafka)
	}
}

func TestLoadConfig_RejectsBadChunkSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tally.toml")
	if err := os.WriteFile(path, []byte("[ledger]\nchunk_size = -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() should reject non-positive chunk_size")
	}
}

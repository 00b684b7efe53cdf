package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadInterpolatesEnvAndValidates(t *testing.T) {
	cfgPath := writeConfig(t, `
version: 1
store:
  root: ./data
  cache_db: ./data/meta.db
chain:
  rpc_url: ${RPC_URL}
  confirmations: 12
contracts:
  - address: "0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
    abi: abis/usdc.json
    events: ["Transfer"]
`)
	t.Setenv("RPC_URL", "http://example-rpc")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}

	if got := cfg.Chain.RPCURL; got != "http://example-rpc" {
		t.Fatalf("rpc_url not interpolated, got %q", got)
	}
	ct := cfg.Contracts[0]
	if ct.Address != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Fatalf("address not lowercased: %s", ct.Address)
	}
	if ct.ChunkSize != DefaultChunkSize {
		t.Fatalf("chunk size default not applied: %d", ct.ChunkSize)
	}
	base := filepath.Dir(cfgPath)
	if cfg.Store.Root != filepath.Join(base, "data") {
		t.Fatalf("store root not anchored: %s", cfg.Store.Root)
	}
	if ct.ABI != filepath.Join(base, "abis", "usdc.json") {
		t.Fatalf("abi path not anchored: %s", ct.ABI)
	}
}

func TestLoadFailsOnMissingEnv(t *testing.T) {
	cfgPath := writeConfig(t, `
version: 1
store:
  root: ./data
chain:
  rpc_url: ${RPC_URL_THAT_IS_NOT_SET}
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected missing env to fail")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	cfgPath := writeConfig(t, `
version: 1
store:
  root: ${EVENTVAULT_TEST_ROOT}
`)
	envPath := filepath.Join(filepath.Dir(cfgPath), ".env")
	if err := os.WriteFile(envPath, []byte("EVENTVAULT_TEST_ROOT=/var/lib/eventvault\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("EVENTVAULT_TEST_ROOT") })

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Root != "/var/lib/eventvault" {
		t.Fatalf("root from .env not applied: %s", cfg.Store.Root)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no_version", Config{Store: Store{Root: "x"}}},
		{"no_root", Config{Version: 1}},
		{"bad_address", Config{Version: 1, Store: Store{Root: "x"}, Contracts: []Contract{{Address: "nope"}}}},
		{"duplicate_contract", Config{Version: 1, Store: Store{Root: "x"}, Contracts: []Contract{
			{Address: "0x0000000000000000000000000000000000000001"},
			{Address: "0x0000000000000000000000000000000000000001"},
		}}},
		{"duplicate_event", Config{Version: 1, Store: Store{Root: "x"}, Contracts: []Contract{
			{Address: "0x0000000000000000000000000000000000000001", Events: []string{"Transfer", "Transfer"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultChunkSize is the block span of one ingested chunk when a contract does not set one.
const DefaultChunkSize = 10_000

// Config holds the YAML configuration.
type Config struct {
	Version   int        `yaml:"version"`
	Store     Store      `yaml:"store"`
	Chain     Chain      `yaml:"chain"`
	ABIDirs   []string   `yaml:"abi_dirs"`
	Contracts []Contract `yaml:"contracts"`
}

// Store locates the chunk tree and the optional metadata database.
type Store struct {
	Root    string `yaml:"root"`
	CacheDB string `yaml:"cache_db"`
}

// Chain configures the EVM node used for ingestion and the latest block.
type Chain struct {
	RPCURL        string  `yaml:"rpc_url"`
	Confirmations uint64  `yaml:"confirmations"`
	RateLimit     float64 `yaml:"rate_limit"`
}

// Contract describes one contract whose events are ingested.
type Contract struct {
	Address    string   `yaml:"address"`
	ABI        string   `yaml:"abi"`
	StartBlock uint64   `yaml:"start_block"`
	ChunkSize  uint64   `yaml:"chunk_size"`
	Events     []string `yaml:"events"`
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// resolvePaths anchors relative filesystem paths at the config file's directory.
func (c *Config) resolvePaths(base string) {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Store.Root = anchor(c.Store.Root)
	c.Store.CacheDB = anchor(c.Store.CacheDB)
	for i := range c.ABIDirs {
		c.ABIDirs[i] = anchor(c.ABIDirs[i])
	}
	for i := range c.Contracts {
		c.Contracts[i].ABI = anchor(c.Contracts[i].ABI)
	}
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if c.Store.Root == "" {
		return errors.New("store.root is required")
	}

	seen := map[string]struct{}{}
	for i := range c.Contracts {
		ct := &c.Contracts[i]
		if err := ct.Validate(); err != nil {
			return fmt.Errorf("contract %s: %w", ct.Address, err)
		}
		if _, exists := seen[ct.Address]; exists {
			return fmt.Errorf("duplicate contract: %s", ct.Address)
		}
		seen[ct.Address] = struct{}{}
	}
	return nil
}

// Validate normalizes the address to lowercase and fills defaults.
func (ct *Contract) Validate() error {
	if ct.Address == "" {
		return errors.New("address is required")
	}
	if !common.IsHexAddress(ct.Address) {
		return fmt.Errorf("invalid address: %s", ct.Address)
	}
	ct.Address = strings.ToLower(ct.Address)
	if ct.ChunkSize == 0 {
		ct.ChunkSize = DefaultChunkSize
	}
	names := map[string]struct{}{}
	for _, ev := range ct.Events {
		if strings.TrimSpace(ev) == "" {
			return errors.New("event name must not be empty")
		}
		if _, ok := names[ev]; ok {
			return fmt.Errorf("duplicate event: %s", ev)
		}
		names[ev] = struct{}{}
	}
	return nil
}

// RequireRPC reports an error when no chain endpoint is configured.
func (c *Config) RequireRPC() error {
	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url is required")
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

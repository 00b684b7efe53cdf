package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const sampleConfig = `version: 1
store:
  root: ./data
  cache_db: ./data/eventvault.db
chain:
  rpc_url: ${RPC_URL}
  confirmations: 12
  rate_limit: 10
abi_dirs:
  - ./abis
contracts:
  - address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
    start_block: 6082465
    chunk_size: 10000
    events: ["Transfer"]
`

const sampleERC20ABI = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}
  ]},
  {"type":"event","name":"Approval","anonymous":false,"inputs":[
    {"name":"owner","type":"address","indexed":true},
    {"name":"spender","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}
  ]}
]
`

const sampleEnv = `RPC_URL=https://ethereum-rpc.publicnode.com
LOG_LEVEL=info
`

var (
	flagInitDir   string
	flagInitForce bool
)

func init() {
	initCmd.Flags().StringVar(&flagInitDir, "dir", ".", "Directory to scaffold into")
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "Overwrite existing files")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a sample config, ABI directory, and data root",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		files := []struct {
			path    string
			content string
		}{
			{filepath.Join(flagInitDir, "config.yaml"), sampleConfig},
			{filepath.Join(flagInitDir, ".env.example"), sampleEnv},
			{filepath.Join(flagInitDir, "abis", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.json"), sampleERC20ABI},
		}
		if err := os.MkdirAll(filepath.Join(flagInitDir, "data"), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		for _, f := range files {
			if _, err := os.Stat(f.path); err == nil && !flagInitForce {
				fmt.Fprintf(out, "- %s exists, skipped\n", f.path)
				continue
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
				return fmt.Errorf("create dir: %w", err)
			}
			if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", f.path, err)
			}
			fmt.Fprintf(out, "- wrote %s\n", f.path)
		}
		fmt.Fprintln(out, "init: copy .env.example to .env and set RPC_URL")
		return nil
	},
}

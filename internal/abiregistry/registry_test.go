package abiregistry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenABI = `[
	{"type":"event","name":"Transfer","inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Tagged","inputs":[
		{"name":"tag","type":"bytes32","indexed":false}
	]},
	{"type":"event","name":"Tagged","inputs":[
		{"name":"tag","type":"bytes32","indexed":false},
		{"name":"note","type":"string","indexed":false}
	]}
]`

const tokenAddr = "0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	a, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	r := New()
	r.Add(tokenAddr, &a)
	return r
}

func TestResolveEventHash(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.ResolveEventHash(strings.ToUpper(tokenAddr[:2])+tokenAddr[2:], "Transfer")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if got != want {
		t.Fatalf("hash = %s, want %s", got, want)
	}
	if SignatureHash("Transfer(address,address,uint256)") != want {
		t.Fatalf("signature hash mismatch")
	}

	bySig, err := r.ResolveEventHash(tokenAddr, "Transfer(address,address,uint256)")
	if err != nil || bySig != want {
		t.Fatalf("resolve by signature = %s, %v", bySig, err)
	}
}

func TestResolveEventHashErrors(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.ResolveEventHash(tokenAddr, "Approval"); !errors.Is(err, ErrMissingDefinition) {
		t.Fatalf("expected missing definition, got %v", err)
	}
	if _, err := r.ResolveEventHash(tokenAddr, "Tagged"); !errors.Is(err, ErrAmbiguousDefinition) {
		t.Fatalf("expected ambiguous definition, got %v", err)
	}
	if _, err := r.ResolveEventHash("0x0000000000000000000000000000000000000009", "Transfer"); !errors.Is(err, ErrMissingDefinition) {
		t.Fatalf("expected missing definition for unknown contract, got %v", err)
	}
}

func TestEventByHash(t *testing.T) {
	r := newTestRegistry(t)
	hash := SignatureHash("Tagged(bytes32)")

	ev, err := r.EventByHash(tokenAddr, strings.ToUpper(hash[2:]))
	if err != nil {
		t.Fatalf("event by hash: %v", err)
	}
	if ev.RawName != "Tagged" || len(ev.Inputs) != 1 {
		t.Fatalf("unexpected event %s", ev.Sig)
	}
	if _, err := r.EventByHash(tokenAddr, SignatureHash("Nope()")); !errors.Is(err, ErrMissingDefinition) {
		t.Fatalf("expected missing definition, got %v", err)
	}
}

func TestLoadDirsBindsByFileName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, tokenAddr+".json"), []byte(tokenABI), 0o644); err != nil {
		t.Fatalf("write abi: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	r := New()
	if err := r.LoadDirs([]string{dir}); err != nil {
		t.Fatalf("load dirs: %v", err)
	}
	got := r.Contracts()
	if len(got) != 1 || got[0] != strings.ToLower(tokenAddr) {
		t.Fatalf("unexpected contracts %v", got)
	}
}

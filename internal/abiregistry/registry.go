// Package abiregistry binds contract addresses to their ABI and resolves event
// names to canonical signature hashes.
package abiregistry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrMissingDefinition is returned when no event definition matches.
	ErrMissingDefinition = errors.New("missing event definition")
	// ErrAmbiguousDefinition is returned when more than one event definition matches.
	ErrAmbiguousDefinition = errors.New("ambiguous event definition")
)

// Registry holds one ABI per contract address.
type Registry struct {
	abis map[string]*abi.ABI
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{abis: map[string]*abi.ABI{}}
}

// Add binds an ABI to a contract address, replacing any previous binding.
func (r *Registry) Add(address string, a *abi.ABI) {
	r.abis[strings.ToLower(address)] = a
}

// Contracts returns the bound addresses in sorted order.
func (r *Registry) Contracts() []string {
	out := make([]string, 0, len(r.abis))
	for addr := range r.abis {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// LoadFile parses a single ABI JSON file.
func LoadFile(path string) (*abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abi %s: %w", path, err)
	}
	a, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse abi %s: %w", path, err)
	}
	return &a, nil
}

// LoadDirs walks the directories and binds every <address>.json file to that
// address. Files whose name is not an address are ignored.
func (r *Registry) LoadDirs(dirs []string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
				return nil
			}
			stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			if !common.IsHexAddress(stem) {
				return nil
			}
			a, err := LoadFile(path)
			if err != nil {
				return err
			}
			r.Add(stem, a)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// EventsByName returns the events of a contract whose name or full signature equals name.
// Overloaded events share a raw name, so more than one match is possible.
func (r *Registry) EventsByName(address, name string) []abi.Event {
	a, ok := r.abis[strings.ToLower(address)]
	if !ok {
		return nil
	}
	var out []abi.Event
	for _, ev := range a.Events {
		if ev.RawName == name || ev.Sig == name {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sig < out[j].Sig })
	return out
}

// ResolveEventHash maps an event name to its lowercase 0x-prefixed signature hash.
func (r *Registry) ResolveEventHash(address, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: event name is required", ErrMissingDefinition)
	}
	candidates := r.EventsByName(address, name)
	switch len(candidates) {
	case 1:
		return strings.ToLower(candidates[0].ID.Hex()), nil
	case 0:
		return "", fmt.Errorf("%w: %s on contract %s", ErrMissingDefinition, name, strings.ToLower(address))
	default:
		sigs := make([]string, 0, len(candidates))
		for _, c := range candidates {
			sigs = append(sigs, c.Sig)
		}
		return "", fmt.Errorf("%w: %s on contract %s matches %s", ErrAmbiguousDefinition, name, strings.ToLower(address), strings.Join(sigs, ", "))
	}
}

// EventByHash looks up an event definition by its signature hash.
func (r *Registry) EventByHash(address, hash string) (*abi.Event, error) {
	a, ok := r.abis[strings.ToLower(address)]
	if !ok {
		return nil, fmt.Errorf("%w: no abi for contract %s", ErrMissingDefinition, strings.ToLower(address))
	}
	want := common.HexToHash(hash)
	for _, ev := range a.Events {
		if ev.ID == want {
			ev := ev
			return &ev, nil
		}
	}
	return nil, fmt.Errorf("%w: hash %s on contract %s", ErrMissingDefinition, strings.ToLower(hash), strings.ToLower(address))
}

// SignatureHash returns the keccak256 hash of a canonical event signature such
// as Transfer(address,address,uint256).
func SignatureHash(signature string) string {
	return strings.ToLower(crypto.Keccak256Hash([]byte(signature)).Hex())
}

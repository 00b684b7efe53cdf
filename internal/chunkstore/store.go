// Package chunkstore keeps EVM event logs as immutable CSV chunks, one file per
// (contract, event, block range), and rebuilds a validated catalog of them from
// file names on every query.
//
// Writers to the same event directory are serialized with an advisory lock on
// unix systems. Elsewhere, and across hosts sharing a network filesystem, only
// one writer per event may run at a time; overlapping writes are then caught by
// the next catalog build, not prevented.
package chunkstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devblac/eventvault/internal/logging"
	"github.com/devblac/eventvault/internal/metrics"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EventResolver maps event names to signature hashes and hashes to definitions.
type EventResolver interface {
	ResolveEventHash(contract, name string) (string, error)
	EventByHash(contract, hash string) (*abi.Event, error)
}

// HeadResolver returns the current chain head for the "latest" bound.
type HeadResolver interface {
	LatestBlock(ctx context.Context) (uint64, error)
}

// Options carries the optional collaborators of a Store.
type Options struct {
	Resolver EventResolver
	Head     HeadResolver
	Cache    CatalogCache
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Store reads and writes chunks under one data root.
type Store struct {
	layout   Layout
	resolver EventResolver
	head     HeadResolver
	cache    CatalogCache
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New builds a store rooted at layout.Root.
func New(layout Layout, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Store{
		layout:   layout,
		resolver: opts.Resolver,
		head:     opts.Head,
		cache:    opts.Cache,
		log:      log,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// Layout returns the path deriver used by the store.
func (s *Store) Layout() Layout {
	return s.layout
}

// ResolveEventHash returns the normalized hash, resolving name through the
// registry when hash is empty.
func (s *Store) ResolveEventHash(contract, hash, name string) (string, error) {
	if hash != "" {
		return NormalizeHash(hash), nil
	}
	if name == "" {
		return "", fmt.Errorf("%w: event hash or name is required", ErrMissingDefinition)
	}
	if s.resolver == nil {
		return "", fmt.Errorf("%w: no event registry configured to resolve %s", ErrMissingDefinition, name)
	}
	h, err := s.resolver.ResolveEventHash(NormalizeAddress(contract), name)
	if err != nil {
		return "", err
	}
	return NormalizeHash(h), nil
}

// EventDirByName derives the event directory, resolving the event name first.
func (s *Store) EventDirByName(contract, name string) (string, error) {
	hash, err := s.ResolveEventHash(contract, "", name)
	if err != nil {
		return "", err
	}
	return s.layout.EventDir(contract, hash), nil
}

// ChunkPathByName derives a chunk path, resolving the event name first.
func (s *Store) ChunkPathByName(contract, name string, startBlock, endBlock uint64) (string, error) {
	hash, err := s.ResolveEventHash(contract, "", name)
	if err != nil {
		return "", err
	}
	return s.layout.ChunkPath(contract, hash, startBlock, endBlock), nil
}

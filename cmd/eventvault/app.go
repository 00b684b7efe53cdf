package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/devblac/eventvault/internal/abiregistry"
	"github.com/devblac/eventvault/internal/chainhead"
	"github.com/devblac/eventvault/internal/chunkstore"
	"github.com/devblac/eventvault/internal/config"
	"github.com/devblac/eventvault/internal/logging"
	"github.com/devblac/eventvault/internal/metrics"
	"github.com/devblac/eventvault/internal/storage"
)

// app bundles what most commands need: config, logger, ABIs, and the chunk store.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	reg    *abiregistry.Registry
	meta   *storage.Store
	head   *chainhead.RPC
	chunks *chunkstore.Store
}

type appOptions struct {
	// dialHead connects to chain.rpc_url so reads can resolve "latest".
	dialHead bool
	metrics  *metrics.Metrics
}

func newLogger() *slog.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	return logging.NewWithLevel(logLevel)
}

func openApp(ctx context.Context, opts appOptions) (*app, error) {
	log := newLogger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, reg: reg}
	storeOpts := chunkstore.Options{
		Resolver: reg,
		Logger:   log,
		Metrics:  opts.metrics,
	}

	if cfg.Store.CacheDB != "" {
		meta, err := storage.Open(cfg.Store.CacheDB)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		if err := meta.Ping(ctx); err != nil {
			meta.Close()
			return nil, fmt.Errorf("ping storage: %w", err)
		}
		a.meta = meta
		storeOpts.Cache = meta
	}

	if opts.dialHead && cfg.Chain.RPCURL != "" {
		head, err := chainhead.Dial(cfg.Chain.RPCURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.head = head
		storeOpts.Head = head
	}

	a.chunks = chunkstore.New(chunkstore.Layout{Root: cfg.Store.Root}, storeOpts)
	return a, nil
}

// Close releases the metadata database and RPC connection.
func (a *app) Close() {
	if a.head != nil {
		a.head.Close()
	}
	if a.meta != nil {
		_ = a.meta.Close()
	}
}

// loadRegistry binds every configured ABI file and abi_dirs entry.
func loadRegistry(cfg *config.Config) (*abiregistry.Registry, error) {
	reg := abiregistry.New()
	if err := reg.LoadDirs(cfg.ABIDirs); err != nil {
		return nil, fmt.Errorf("load abi dirs: %w", err)
	}
	for _, ct := range cfg.Contracts {
		if ct.ABI == "" {
			continue
		}
		parsed, err := abiregistry.LoadFile(ct.ABI)
		if err != nil {
			return nil, err
		}
		reg.Add(ct.Address, parsed)
	}
	return reg, nil
}

// eventName returns the ABI name of an event hash, for display.
func (a *app) eventName(contract, hash string) (string, bool) {
	ev, err := a.reg.EventByHash(contract, hash)
	if err != nil {
		return "", false
	}
	return ev.RawName, true
}

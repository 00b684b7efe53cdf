package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/devblac/eventvault/internal/health"
	"github.com/devblac/eventvault/internal/ingest"
	"github.com/devblac/eventvault/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	flagOnce     bool
	flagTo       uint64
	flagInterval time.Duration
	flagHealth   string
	flagMetrics  string
)

func init() {
	ingestCmd.Flags().BoolVar(&flagOnce, "once", false, "Catch up to the confirmed head and exit")
	ingestCmd.Flags().Uint64Var(&flagTo, "to", 0, "Stop at block (inclusive)")
	ingestCmd.Flags().DurationVar(&flagInterval, "interval", 15*time.Second, "Polling interval between passes")
	ingestCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	ingestCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch configured events from the chain into chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var mtr *metrics.Metrics
		if flagMetrics != "" {
			mtr = metrics.Init()
		}

		a, err := openApp(ctx, appOptions{metrics: mtr})
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.log

		if err := a.cfg.RequireRPC(); err != nil {
			return err
		}
		if a.meta == nil {
			return errors.New("ingest needs store.cache_db to keep cursors")
		}

		streams, err := ingest.StreamsFromConfig(a.cfg, a.reg)
		if err != nil {
			return err
		}
		if len(streams) == 0 {
			return errors.New("no contract events configured")
		}

		client, err := ingest.NewRPCClient(a.cfg.Chain.RPCURL)
		if err != nil {
			return err
		}
		defer client.Close()

		if flagHealth != "" {
			healthSrv := health.Serve(flagHealth, health.Checker{
				StoreCheck: health.StoreRootCheck(a.cfg.Store.Root),
				DBPing:     a.meta.Ping,
				RPCPing:    health.RPCPing(client),
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		if flagMetrics != "" {
			log.Info("metrics enabled", "addr", flagMetrics)
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: flagMetrics, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}

		in := ingest.New(client, a.meta, a.chunks, streams, ingest.Options{
			Confirmations: a.cfg.Chain.Confirmations,
			RateLimit:     a.cfg.Chain.RateLimit,
			StopAt:        flagTo,
			Logger:        log,
			Metrics:       mtr,
		})
		log.Info("ingest starting", "streams", len(streams), "confirmations", a.cfg.Chain.Confirmations, "rpc_url", a.cfg.Chain.RPCURL)

		if flagOnce {
			windows, err := in.RunOnce(ctx)
			if err != nil {
				log.Error("ingest error", "error", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingest: stored %d window(s)\n", len(windows))
			return nil
		}
		if err := in.Run(ctx, flagInterval); err != nil {
			log.Error("ingest error", "error", err)
			return err
		}
		return nil
	},
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentkit"
	"github.com/hupe1980/agentkit/config"
	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/engine"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/provider"
	"github.com/hupe1980/agentkit/tracing"
	"github.com/hupe1980/agentkit/tracing/sqlitestore"
)

// configPath returns the --config flag, falling back to the settings.
func configPath(cmd *cobra.Command, s *config.Settings) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return s.ConfigFile
}

// newKit wires a Kit from the process settings: logging, span exporter,
// optional SQLite trace store, provider factory and admission gate.
func newKit(ctx context.Context, s *config.Settings, files []string) (*agentkit.Kit, error) {
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(s.LogLevel),
		Format: s.LogFormat,
	})

	tp, shutdownTP, err := tracing.SetupExporter(ctx, tracing.ExporterConfig{Exporter: s.TraceExporter})
	if err != nil {
		return nil, err
	}
	hooks := []func(context.Context) error{shutdownTP}

	var stores []tracing.Store
	if s.TraceDB != "" {
		store, err := sqlitestore.Open(s.TraceDB)
		if err != nil {
			return nil, errors.Join(err, shutdownTP(ctx))
		}
		stores = append(stores, store)
		hooks = append(hooks, func(context.Context) error { return store.Close() })
	}

	routes := map[core.Capability]string{}
	for capability, id := range s.RouteMap() {
		routes[core.Capability(capability)] = id
	}

	kit := agentkit.New(func(o *agentkit.Options) {
		o.Logger = logger
		o.Routes = routes
		o.ConfigFiles = files
		o.OnShutdown = hooks
		o.Collector = tracing.NewCollector(func(co *tracing.Options) {
			co.TracerProvider = tp
			co.Stores = stores
			co.Logger = logger
		})
		o.Gate = engine.NewGate(func(g *engine.GateOptions) {
			g.MaxConcurrent = int64(s.MaxConcurrency)
			g.RequestsPerSecond = s.RateLimit
			g.Burst = s.RateBurst
		})
		o.Models = provider.NewFactory(func(f *provider.FactoryOptions) {
			f.Credentials = provider.Credentials{APIKeys: s.APIKeyMap(), BaseURLs: s.BaseURLMap()}
			f.Timeout = s.RequestTimeout
			f.Breaker = provider.BreakerSettings{
				MaxFailures: s.BreakerFailures,
				Timeout:     s.BreakerTimeout,
				Logger:      logger,
			}
			f.Logger = logger
		})
	})

	if err := kit.Start(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("start: %w", err), kit.Shutdown(ctx))
	}
	return kit, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"quantra-hq/hermes/pkg/accounts"
	"quantra-hq/hermes/pkg/audit"
	"quantra-hq/hermes/pkg/auth"
	"quantra-hq/hermes/pkg/config"
	"quantra-hq/hermes/pkg/gateway"
	"quantra-hq/hermes/pkg/providers"
	"quantra-hq/hermes/pkg/stream"
	"quantra-hq/hermes/pkg/telemetry/logging"
	"quantra-hq/hermes/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Hermes gateway",
	Long: `Start the Hermes gateway with the specified configuration.

The gateway listens on the configured address, upgrades client
connections to WebSocket, and brokers chat requests to the upstream
model provider through the streaming pipeline.

Examples:
  # Start with default config
  hermes run

  # Start with custom config
  hermes run --config /etc/hermes/config.yaml

  # Override listen address
  hermes run --listen 0.0.0.0:8990

  # Validate config without starting
  hermes run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "reload tokens and dynamic limits when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		RedactPII: cfg.Telemetry.Logging.RedactPII,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	slog.SetDefault(logger.Slog())

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Hermes v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	// Audit store. When auditing is disabled the recorder is still
	// constructed so callers never branch, but every Record is a no-op.
	var store audit.Storage
	switch {
	case !cfg.Audit.Enabled:
		store = audit.NewMemoryStorage()
	case cfg.Audit.Backend == "memory":
		store = audit.NewMemoryStorage()
	case cfg.Audit.Backend == "sqlite":
		sqliteCfg := audit.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.Audit.SQLitePath
		store, err = audit.NewSQLiteStorage(sqliteCfg)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
	default:
		return fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}
	defer store.Close()

	recorder := audit.NewRecorder(store, &audit.RecorderConfig{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
	})
	defer recorder.Close()

	if cfg.Audit.Enabled && cfg.Audit.RetentionSchedule != "" {
		pruner := audit.NewPruner(store, &audit.RetentionConfig{
			RetentionDays: cfg.Audit.RetentionDays,
			Schedule:      cfg.Audit.RetentionSchedule,
		})
		if err := pruner.Start(context.Background()); err != nil {
			slog.Warn("failed to start audit retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
		}
		fmt.Println("✓ Audit store initialized")
	}

	// Upstream provider and account pool
	provider := providers.NewHTTPProvider(providers.ProviderConfig{
		Timeout:             cfg.Provider.Timeout,
		MaxIdleConns:        cfg.Provider.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Provider.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Provider.IdleConnTimeout,
	})
	defer provider.Close()

	pool := make([]*accounts.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		pool = append(pool, &accounts.Account{
			ID:      a.ID,
			APIKey:  a.APIKey,
			BaseURL: a.BaseURL,
			Model:   a.Model,
		})
	}
	selector := accounts.NewRoundRobinSelector(pool)
	fmt.Printf("✓ Accounts loaded (%d accounts)\n", len(pool))

	// Registry, pipeline, coordinator, server
	registry := gateway.NewRegistry(gateway.RegistryConfig{
		MaxConnections:    cfg.Gateway.MaxConnections,
		MaxPerUser:        cfg.Gateway.MaxPerUser,
		SendTimeout:       cfg.Gateway.SendTimeout,
		HeartbeatInterval: cfg.Gateway.HeartbeatInterval,
		ReaperInterval:    cfg.Gateway.ReaperInterval,
		ConnectionTimeout: cfg.Gateway.ConnectionTimeout,
	}, logger, collector, recorder)

	recovery := stream.NewRecoveryManager(cfg.Stream.RecoveryWindow)
	pipeline := stream.NewPipeline(provider, selector, recovery, registry, stream.Config{
		MaxRetries:  cfg.Stream.MaxRetries,
		BackoffBase: cfg.Stream.BackoffBase,
		BackoffMax:  cfg.Stream.BackoffMax,
	}, logger, collector)

	coordinator := gateway.NewCoordinator(registry, pipeline, logger, recorder)
	defer coordinator.Close()

	validator := newValidator(cfg)
	srv := gateway.NewServer(cfg.Server, cfg.Gateway, registry, coordinator, validator, logger, collector, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go registry.Run(ctx)

	if runFlags.watch && cfgFile != "" {
		watcher := config.NewWatcher(cfgFile, logger.Slog())
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) {
				reloadTokens(validator, cfg.Auth, next.Auth)
				cfg.Auth = next.Auth
				registry.UpdateLimits(next.Gateway.MaxConnections, next.Gateway.MaxPerUser)
				recovery.SetWindow(next.Stream.RecoveryWindow)
				slog.Info("configuration reloaded",
					"tokens", len(next.Auth.Tokens),
					"max_connections", next.Gateway.MaxConnections,
					"max_per_user", next.Gateway.MaxPerUser,
					"recovery_window", next.Stream.RecoveryWindow,
				)
			})
			if err != nil && ctx.Err() == nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway", "address", cfg.Server.ListenAddress)
		if err := srv.ListenAndServe(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Gateway listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ WebSocket endpoint: ws://%s/ws\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("shutdown failed", "error", err)
			return err
		}

		fmt.Println("✓ Gateway stopped")
		return nil
	}
}

func newValidator(cfg *config.Config) *auth.TokenValidator {
	infos := make([]*auth.TokenInfo, 0, len(cfg.Auth.Tokens))
	for _, t := range cfg.Auth.Tokens {
		infos = append(infos, &auth.TokenInfo{
			Token:   t.Token,
			UserID:  t.UserID,
			Enabled: t.Enabled,
		})
	}
	return auth.NewTokenValidator(infos)
}

// reloadTokens reconciles the validator's token table against a freshly
// loaded configuration. Tokens absent from the new configuration are
// revoked immediately.
func reloadTokens(v *auth.TokenValidator, old, next config.AuthConfig) {
	keep := make(map[string]struct{}, len(next.Tokens))
	for _, t := range next.Tokens {
		keep[t.Token] = struct{}{}
		v.Add(&auth.TokenInfo{Token: t.Token, UserID: t.UserID, Enabled: t.Enabled})
	}
	for _, t := range old.Tokens {
		if _, ok := keep[t.Token]; !ok {
			v.Remove(t.Token)
		}
	}
}

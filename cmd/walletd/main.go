package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/quorum-wallet/autolock"
	"github.com/ruteri/quorum-wallet/cmd/flags"
	"github.com/ruteri/quorum-wallet/common"
	"github.com/ruteri/quorum-wallet/eventbus"
	"github.com/ruteri/quorum-wallet/httpserver"
	"github.com/ruteri/quorum-wallet/kms"
	"github.com/ruteri/quorum-wallet/metrics"
	"github.com/ruteri/quorum-wallet/modules"
	"github.com/ruteri/quorum-wallet/quorum"
	"github.com/ruteri/quorum-wallet/registry"
	"github.com/ruteri/quorum-wallet/storage"
	"github.com/ruteri/quorum-wallet/wallet"
	"github.com/urfave/cli/v2"
)

var flagOrigins = &cli.StringSliceFlag{
	Name:  "allowed-origin",
	Usage: "extra origin pattern accepted by the event streams, may be repeated",
}

func main() {
	app := &cli.App{
		Name:  "walletd",
		Usage: "Serve the quorum wallet API",
		Flags: append([]cli.Flag{flagOrigins}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				logger.Error("Failed to load configuration", "err", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Local device state
			stateKey, err := cfg.StateEncryptionKey()
			if err != nil {
				return err
			}
			kv, err := storage.NewBadgerStore(storage.BadgerConfig{
				DBPath:        cfg.StatePath(),
				EncryptionKey: stateKey,
				Log:           logger,
			})
			if err != nil {
				logger.Error("Failed to open device state", "err", err)
				return err
			}
			defer kv.Close()

			state := wallet.NewStateStore(kv)
			device, err := state.Device()
			if err != nil {
				logger.Error("Failed to load device identity", "err", err)
				return err
			}
			logger = logger.With("wallet", device.WalletUUID.String())

			// Authentication modules
			built, err := modules.Build(cfg.Modules, device, modules.Options{Log: logger})
			if err != nil {
				logger.Error("Failed to configure modules", "err", err)
				return err
			}
			reg, err := registry.New(built)
			if err != nil {
				return err
			}

			// Events and metrics
			bus := eventbus.New(cfg.EventBuffer, logger)
			defer bus.Close()

			var metricsSrv *metrics.MetricsServer
			var m *metrics.Metrics
			if cfg.MetricsAddr != "" {
				metricsSrv, err = metrics.New(common.PackageName, cfg.MetricsAddr)
				if err != nil {
					logger.Error("Failed to create metrics server", "err", err)
					return err
				}
				if err := metricsSrv.RegisterEventCounters(common.PackageName, bus.Published, bus.Dropped); err != nil {
					return err
				}
				m = metricsSrv.Metrics
			}

			if cfg.NATSURL != "" {
				conn, err := eventbus.ConnectNATS(cfg.NATSURL, logger)
				if err != nil {
					logger.Error("Failed to connect to NATS", "err", err)
					return err
				}
				defer conn.Close()
				forwarder := eventbus.NewNATSForwarder(conn, bus, logger)
				go func() {
					if err := forwarder.Run(ctx); err != nil {
						logger.Error("Event forwarding stopped", "err", err)
					}
				}()
			}

			// Key part storage
			locations, err := storage.ParseLocations(cfg.StorageURIs())
			if err != nil {
				logger.Error("Invalid storage location", "err", err)
				return err
			}
			store, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
			if err != nil {
				logger.Error("Failed to create storage backends", "err", err)
				return err
			}

			// Wallet
			combiner := kms.NewShareCombiner()
			coordinator := quorum.NewCoordinator(reg, combiner, bus, m, logger, quorum.Config{
				Timeout: cfg.AttemptTimeout,
			})
			lifecycle := wallet.New(wallet.Deps{
				Coordinator: coordinator,
				Combiner:    combiner,
				Store:       store,
				State:       state,
				Device:      device,
				Events:      bus,
				Metrics:     m,
				Log:         logger,
			})

			timer := autolock.New(lifecycle, bus, logger, autolock.Config{Window: cfg.AutolockWindow()})
			lifecycle.OnStatusChange(timer.OnStatusChange)
			go timer.Run(ctx)

			if err := lifecycle.Open(ctx); err != nil {
				logger.Error("Failed to open wallet", "err", err)
				return err
			}
			logger.Info("Wallet opened", "status", lifecycle.Status().String())

			// API
			handler := httpserver.NewHandler(lifecycle, coordinator, timer, bus, logger)
			handler.DefaultThreshold = cfg.Threshold
			handler.AttemptTimeout = cfg.AttemptTimeout
			handler.OriginPatterns = cCtx.StringSlice(flagOrigins.Name)

			server, err := httpserver.New(flags.ConfigureServer(cCtx, cfg, logger), handler, metricsSrv)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			<-ctx.Done()
			logger.Info("Shutdown signal received")

			lifecycle.Lock(wallet.LockExplicit)
			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

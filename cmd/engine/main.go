package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/api/middleware"
	"github.com/untron/untron-v3-engine/internal/api/server"
	"github.com/untron/untron-v3-engine/internal/block"
	"github.com/untron/untron-v3-engine/internal/config"
	"github.com/untron/untron-v3-engine/internal/controller"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/engine"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/predictor"
	"github.com/untron/untron-v3-engine/internal/providers/ethereum"
	"github.com/untron/untron-v3-engine/internal/providers/jetstream"
	"github.com/untron/untron-v3-engine/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadEngineConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service":      "untron-engine",
			"hub_chain_id": fmt.Sprint(cfg.Hub.ChainID),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Untron V3 engine")

	if cfg.Hub.CustodyKey == "" {
		logger.FatalCtx(ctx, "hub.custody_key is required")
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)
	dataStore := store.NewPGStore(db)

	// Load persisted state
	entries, err := dataStore.LoadEventChain(ctx)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load hub event chain", zap.Error(err))
	}
	progress, err := dataStore.GetControllerProgress(ctx)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load controller progress", zap.Error(err))
	}
	engineState, err := dataStore.LoadEngineState(ctx)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load engine state", zap.Error(err))
	}

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	ethDialer := adapter.NewEthClientDialer()

	// Hub chain: custody, swaps and block heads
	hubClient, err := ethereum.Dial(ctx, ethDialer, cfg.Hub.RPCURL, cfg.Hub.ChainID)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial hub RPC", zap.Error(err), zap.String("rpc_url", cfg.Hub.RPCURL))
	}
	defer hubClient.Close()

	hubChainID := new(big.Int).SetUint64(cfg.Hub.ChainID)
	transactorCfg := ethereum.TransactorConfig{
		ChainID:             hubChainID,
		ReceiptPollInterval: cfg.Hub.ReceiptPollInterval,
		ReceiptTimeout:      cfg.Hub.ReceiptTimeout,
	}
	custody, err := ethereum.NewTransactor(hubClient, cfg.Hub.CustodyKey, transactorCfg)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load custody key", zap.Error(err))
	}
	if custody.Address() != common.HexToAddress(cfg.Hub.Address) {
		logger.WarnCtx(ctx, "Custody account differs from the hub address, balances are read for the hub address",
			logger.Address("custody", custody.Address()),
			zap.String("hub", cfg.Hub.Address),
		)
	}
	ledger := ethereum.NewTokenLedger(custody)

	var swapExecutor engine.SwapExecutor
	if cfg.Hub.ExecutorKey != "" {
		executorTx, err := ethereum.NewTransactor(hubClient, cfg.Hub.ExecutorKey, transactorCfg)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to load executor key", zap.Error(err))
		}
		swapExecutor = ethereum.NewCallExecutor(executorTx)
		logger.InfoCtx(ctx, "Swap executor configured", logger.Address("address", executorTx.Address()))
	} else {
		logger.WarnCtx(ctx, "Swap executor not configured, fills for non-USDT targets will fail")
	}

	hubHeads := block.NewHeadProvider(ethereum.NewHeadFetcher(hubClient), block.Config{
		TTL:         cfg.Hub.BlockHeadTTL,
		StaleWindow: cfg.Hub.BlockHeadStaleWindow,
	}, clockAdapter)

	// Event sinks; commits are persisted by the engine before they reach them
	dispatcher := engine.NewDispatcher(cfg.Worker.WorkerPoolSize, cfg.Worker.WorkerQueueSize)
	defer dispatcher.Close()

	if cfg.NATS.Enabled {
		natsPublisher, err := jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		defer natsPublisher.Close()
		dispatcher.AddSink(natsPublisher)
		logger.InfoCtx(ctx, "Connected to NATS JetStream", zap.String("stream", cfg.NATS.StreamName))
	}

	// Engine
	var initCodeHash common.Hash
	if cfg.Controller.ReceiverImplementation != "" {
		implementation := common.HexToAddress(cfg.Controller.ReceiverImplementation)
		initCodeHash = predictor.NewForImplementation(common.Address{}, implementation).InitCodeHash()
	}
	owner := common.HexToAddress(cfg.Protocol.Owner)
	eng := engine.New(engine.Config{
		HubChainID:              hubChainID,
		HubAddress:              common.HexToAddress(cfg.Hub.Address),
		Owner:                   owner,
		FloorPPM:                cfg.Protocol.FloorPPM,
		FloorFlatFee:            cfg.Protocol.FloorFlatFee,
		MaxLeaseDurationSeconds: cfg.Protocol.MaxLeaseDurationSeconds,
		PayoutRateLimit:         cfg.Protocol.PayoutRateLimit,
		ReceiverInitCodeHash:    initCodeHash,
	}, clockAdapter, hubHeads, ledger, swapExecutor, dispatcher)
	eng.SetPersister(dataStore)

	var cursor *domain.ControllerCursor
	if progress != nil {
		cursor = &progress.Cursor
	}
	if err := eng.Restore(entries, cursor, engineState); err != nil {
		logger.FatalCtx(ctx, "Failed to restore engine state", zap.Error(err))
	}

	if eng.Settings().Initialized {
		logger.InfoCtx(ctx, "Identities restored", logger.Address("usdt", eng.Settings().Identities.USDT))
	} else if cfg.Controller.Address != "" && cfg.Protocol.TronUSDT != "" && cfg.Protocol.TronReader != "" {
		err := eng.InitializeIdentities(ctx, owner, engine.Identities{
			USDT:       common.HexToAddress(cfg.Protocol.USDT),
			TronUSDT:   common.HexToAddress(cfg.Protocol.TronUSDT),
			TronReader: common.HexToAddress(cfg.Protocol.TronReader),
			Controller: common.HexToAddress(cfg.Controller.Address),
		})
		if err != nil {
			logger.FatalCtx(ctx, "Failed to initialize identities", zap.Error(err))
		}
	} else {
		logger.WarnCtx(ctx, "Identities not configured, deposits cannot be recognized until they are bound")
	}

	// Channel for component errors
	errCh := make(chan error, 2)

	// Controller relay
	var relay *controller.Relay
	if cfg.Controller.RPCURL != "" && cfg.Controller.Address != "" {
		controllerClient, err := ethereum.Dial(ctx, ethDialer, cfg.Controller.RPCURL, 0)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to dial controller RPC", zap.Error(err), zap.String("rpc_url", cfg.Controller.RPCURL))
		}
		defer controllerClient.Close()

		controllerHeads := block.NewHeadProvider(ethereum.NewHeadFetcher(controllerClient), block.Config{
			TTL:         cfg.Controller.BlockHeadTTL,
			StaleWindow: cfg.Controller.BlockHeadStaleWindow,
		}, clockAdapter)
		source := controller.NewEthSource(controllerClient, controllerHeads,
			common.HexToAddress(cfg.Controller.Address), cfg.Controller.BatchSize)

		startBlock := cfg.Controller.StartBlock
		if progress != nil && progress.NextBlock > startBlock {
			startBlock = progress.NextBlock
		}
		relay = controller.NewRelay(&controller.RelayConfig{
			StartBlock:   startBlock,
			PollInterval: cfg.Controller.PollInterval,
			MaxBackoff:   cfg.Controller.MaxBackoff,
		}, source, eng, dataStore, clockAdapter)

		go func() {
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	} else {
		logger.WarnCtx(ctx, "Controller relay disabled, controller.rpc_url or controller.address missing")
	}

	// REST API
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Burst:             cfg.Server.Burst,
		},
		MetricsPath: metricsPath,
	}, eng, dataStore)

	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "engine"))
	}

	// Shutdown with a fresh context since ctx is about to be canceled
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if relay != nil {
		if err := relay.Stop(shutdownCtx); err != nil {
			logger.WarnCtx(shutdownCtx, "Controller relay did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WarnCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}
	cancel()

	// Use non-context logger for final message since ctx is canceled
	logger.Info("Untron V3 engine stopped")
}

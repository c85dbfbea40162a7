// Package main is the entry point for cmx, the carbon-credit marketplace
// node. It opens the world state, runs the marketplace either standalone or
// behind a Tendermint node, and serves the HTTP gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"carbonex.market/cmx/internal/abci"
	"carbonex.market/cmx/internal/api"
	"carbonex.market/cmx/internal/config"
	"carbonex.market/cmx/internal/docs"
	"carbonex.market/cmx/internal/identity"
	"carbonex.market/cmx/internal/ledger"
	"carbonex.market/cmx/internal/logger"
	"carbonex.market/cmx/internal/market"
	"carbonex.market/cmx/internal/tendermint"
	"carbonex.market/cmx/internal/types"
	"carbonex.market/cmx/internal/web"
)

var log = logger.Subsystem(logger.SubsystemNode)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// useLoggers hands each package its subsystem logger.
func useLoggers() {
	market.UseLogger(logger.Subsystem(logger.SubsystemMarket))
	ledger.UseLogger(logger.Subsystem(logger.SubsystemLedger))
	abci.UseLogger(logger.Subsystem(logger.SubsystemABCI))
	api.UseLogger(logger.Subsystem(logger.SubsystemHTTP))
	web.UseLogger(logger.Subsystem(logger.SubsystemHTTP))
	tendermint.UseLogger(logger.Subsystem(logger.SubsystemRPC))
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			return nil
		}
		return err
	}
	if cfg.ShowVersion {
		fmt.Printf("cmx version %s (built %s)\n", types.Version, types.BuildTime)
		return nil
	}

	if err := logger.InitLogRotator(cfg.LogFile); err != nil {
		return err
	}
	defer logger.Close()
	if err := logger.SetLogLevels(cfg.LogLevel); err != nil {
		return err
	}
	useLoggers()

	log.Infof("cmx %s starting in %s mode", types.Version, cfg.Mode)

	node, err := identity.LoadOrCreateIdentity(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load node identity: %w", err)
	}
	log.Infof("Node identity %s", node.ID())
	if cfg.GovernmentID == "" {
		log.Warnf("No government identity configured; the first Initialize caller becomes administrator")
	} else if !identity.ValidID(cfg.GovernmentID) {
		return fmt.Errorf("invalid government identity %q", cfg.GovernmentID)
	}

	backend, err := ledger.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open world state: %w", err)
	}
	state, err := ledger.NewWorldState(backend, cfg.CacheSize)
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to restore world state: %w", err)
	}
	defer state.Close()
	log.Infof("World state at height %d (%s backend)", state.Height(), cfg.Backend)

	hub := web.NewHub()
	app := abci.NewABCIApplication(state, market.New(market.Config{
		GovernmentID: cfg.GovernmentID,
	}), hub)

	var submitter api.Submitter
	switch cfg.Mode {
	case config.ModeStandalone:
		submitter = abci.NewLocalExecutor(app, cfg.MaxConflictRetries)

	case config.ModeConsensus:
		abciServer, err := tendermint.NewABCIServer(app, &tendermint.Config{
			TendermintHome: cfg.TendermintHome,
			SocketAddress:  cfg.ABCIAddress,
		})
		if err != nil {
			return err
		}
		if err := abciServer.Start(); err != nil {
			return err
		}
		defer abciServer.Stop()

		if cfg.TendermintHome != "" {
			node := tendermint.NewNode(cfg.TendermintHome, cfg.ABCIAddress)
			if err := node.Start(); err != nil {
				return err
			}
			defer func() {
				if err := node.Stop(); err != nil {
					log.Warnf("Stopping Tendermint: %v", err)
				}
			}()
		}
		submitter = tendermint.NewBroadcastClient(cfg.TendermintRPC)
	}

	if err := ensurePortAvailable(cfg.Port); err != nil {
		return fmt.Errorf("port %d unavailable: %w", cfg.Port, err)
	}

	var docService *docs.Service
	if info, err := os.Stat(cfg.DocsDir); err == nil && info.IsDir() {
		docService = docs.NewService(cfg.DocsDir)
	} else {
		log.Infof("Docs directory %s not found, /docs disabled", cfg.DocsDir)
	}

	apiService := api.NewService(submitter, app, state, logger.Recent(), cfg.Mode)
	server, err := web.NewServer(cfg.Port, apiService, docService, hub, logger.Recent())
	if err != nil {
		return fmt.Errorf("failed to initialize web server: %w", err)
	}
	serverErrors := server.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received %v, shutting down...", sig)
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("web server exited: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Errorf("HTTP shutdown: %v", err)
	}
	log.Infof("Shutdown complete at height %d", state.Height())
	return nil
}

func ensurePortAvailable(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/yourorg/seekd/internal/config"
	"github.com/yourorg/seekd/internal/engine"
	"github.com/yourorg/seekd/internal/logging"
	"github.com/yourorg/seekd/internal/rpc"
	"github.com/yourorg/seekd/internal/server"
	"github.com/yourorg/seekd/internal/state"
	"github.com/yourorg/seekd/internal/version"
	"github.com/yourorg/seekd/internal/workspace"
)

func main() {
	// CLI flags (override config file)
	listen := flag.String("listen", "", "JSON-RPC listen address")
	httpAddr := flag.String("http", "", "HTTP management/health address")
	roots := flag.String("roots", "", "Comma-separated workspace root directories")
	rgPath := flag.String("rg", "", "Path to the ripgrep executable")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info().String())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *rgPath != "" {
		cfg.RipgrepPath = *rgPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("seekd daemon starting",
		logging.String("listen", cfg.Listen),
		logging.String("http", cfg.HTTPAddr),
		logging.String("settings", cfg.SettingsPath),
		logging.String("version", version.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws := workspace.New(logger)
	if *roots != "" {
		var rootList []string
		for _, r := range strings.Split(*roots, ",") {
			if r = strings.TrimSpace(r); r != "" {
				rootList = append(rootList, r)
			}
		}
		if err := ws.SetRoots(rootList); err != nil {
			log.Fatalf("set roots: %v", err)
		}
	}
	if err := ws.StartWatcher(); err != nil {
		logger.Warn("file watcher unavailable", logging.Error(err))
	}
	defer ws.StopWatcher()

	st := state.New()
	eng := engine.New(cfg, ws, logger)
	httpSrv := server.NewHTTPServer(cfg, st, eng, logger)
	rpcSrv := rpc.New(cfg.Listen, logger)
	rpcSrv.RegisterCore(cfg, st, eng)

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := rpcSrv.Start(); err != nil {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()

	// Mark as ready after servers start
	st.SetReady()
	logger.Info("seekd daemon ready")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		st.SetStopping()
	case err := <-errCh:
		logger.Error("server error", logging.Error(err))
		st.SetStopping()
	}

	eng.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", logging.Error(err))
	}
	if err := rpcSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("rpc shutdown error", logging.Error(err))
	}

	logger.Info("seekd daemon stopped")
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"plantcam/internal/config"
	"plantcam/internal/daemon"
	"plantcam/internal/ipc"
	"plantcam/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	testMode := flag.Bool("test-mode", false, "use the camera simulator instead of the capture binary")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, ring, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	deps, journal, err := buildDependencies(cfg, logger, ring, *testMode)
	if err != nil {
		logger.Error("build daemon dependencies", logging.Error(err))
		os.Exit(1)
	}
	defer journal.Close()

	d, err := daemon.New(cfg, deps, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("plantcamd shutting down")
}

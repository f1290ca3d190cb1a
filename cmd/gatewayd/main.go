// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-secgateway.
//
// go-secgateway is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-secgateway/internal/config"
	"github.com/jeremyhahn/go-secgateway/internal/server"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "/etc/secgateway/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("secgateway daemon\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("SECGW_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	defer memguard.Purge()

	slog.Info("Starting gateway daemon", "config", configPath, "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		return 1
	}

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to create server", slog.Any("error", err))
		return 1
	}

	ctx := server.SetupSignalHandler()
	go reloadOnHangup(ctx, srv, configPath)

	if err := srv.Run(ctx); err != nil {
		slog.Error("Gateway daemon stopped with error", slog.Any("error", err))
		return 1
	}

	slog.Info("Gateway daemon stopped")
	return 0
}

// reloadOnHangup re-reads the configuration file on SIGHUP.
func reloadOnHangup(ctx context.Context, srv *server.Server, configPath string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(configPath)
			if err != nil {
				slog.Error("Reload failed", slog.Any("error", err))
				continue
			}
			if err := srv.Reload(cfg); err != nil {
				slog.Error("Reload failed", slog.Any("error", err))
			}
		}
	}
}

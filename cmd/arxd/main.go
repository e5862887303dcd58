// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command arxd hosts the spatial-topological model as a long-running
// process: it assembles the object store, topology graph, spatial index,
// traversal engine, and change journal from a YAML config and runs until
// signalled.
//
// # Usage
//
//	# Build
//	go build -o arxd ./cmd/arxd
//
//	# Run with defaults (in-memory, no journal)
//	./arxd
//
//	# Run with a config file
//	./arxd -config /etc/arx/arx.yaml -log-dir /var/log/arx
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/arxcore/pkg/logging"
	arx "github.com/AleutianAI/arxcore/services/arx"
	"github.com/AleutianAI/arxcore/services/arx/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	logDir := flag.String("log-dir", "", "directory for JSON log files (stderr only when empty)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := logging.LevelInfo
	if *debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  *logDir,
		Service: "arxd",
	})
	defer logger.Close()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	svc, err := arx.New(cfg, logger.Slog())
	if err != nil {
		log.Fatalf("assemble service: %v", err)
	}
	defer svc.Close()

	logger.Info("arxd running",
		"config", *configPath,
		"journal", cfg.Journal.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutting down", "signal", sig.String())
}

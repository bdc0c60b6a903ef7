// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command gwemu emulates broadband network gateway test traffic against a
// device under test, driven by an HCL run configuration.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/gwemu/internal/config"
	"grimm.is/gwemu/internal/handlers"
	"grimm.is/gwemu/internal/logging"
	"grimm.is/gwemu/internal/orchestrate"
	"grimm.is/gwemu/internal/pcapsink"
	"grimm.is/gwemu/internal/results"
	"grimm.is/gwemu/internal/ringio"
	"grimm.is/gwemu/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "Path to HCL run configuration")
	ioMode := flag.String("io-mode", "raw", "I/O backend: ring, raw, or disabled")
	workers := flag.Int("workers", 0, "Number of TX worker goroutines streams are load-balanced across (informational; 0 disables balancing)")
	metricsListen := flag.String("metrics-listen", ":9469", "Prometheus metrics listen address, empty to disable")
	resultsDB := flag.String("results-db", "", "Path to a SQLite database for run-history persistence, empty to disable")
	pcapPath := flag.String("pcap", "", "Path to write a pcap capture of every sent/received frame, empty to disable")
	preflightTimeout := flag.Duration("preflight-timeout", time.Second, "Per-gateway reachability ping timeout before a run starts")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("gwemu: -config is required")
	}

	logger := logging.New(logging.DefaultConfig())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("gwemu: load config: %v", err)
	}

	mode, err := parseIOMode(*ioMode)
	if err != nil {
		log.Fatalf("gwemu: %v", err)
	}

	var capture *pcapsink.Writer
	if *pcapPath != "" {
		capture, err = pcapsink.Open(*pcapPath)
		if err != nil {
			log.Fatalf("gwemu: open pcap capture: %v", err)
		}
		defer capture.Close()
	}

	opts := orchestrate.Options{
		Mode:    mode,
		Workers: *workers,
		Logger:  logger,
	}
	if capture != nil {
		opts.Capture = capture
	}

	rt, err := orchestrate.New(cfg, handlers.Dispatch{}, opts)
	if err != nil {
		log.Fatalf("gwemu: build runtime: %v", err)
	}

	for name, pingErr := range rt.Preflight(*preflightTimeout) {
		if pingErr != nil {
			logger.Warn("gateway unreachable before start", "interface", name, "error", pingErr)
		}
	}

	var store *results.Store
	var runID int64
	var runUUID string
	if *resultsDB != "" {
		store, err = results.Open(*resultsDB)
		if err != nil {
			log.Fatalf("gwemu: open results db: %v", err)
		}
		defer store.Close()

		runID, runUUID, err = store.StartRun(*configPath, time.Now())
		if err != nil {
			log.Fatalf("gwemu: start run record: %v", err)
		}
		logger.Info("run recorded", "run_uuid", runUUID)
	}

	if *metricsListen != "" {
		reg := prometheus.NewRegistry()
		if err := rt.Metrics.RegisterWith(reg); err != nil {
			log.Fatalf("gwemu: register metrics: %v", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsListen, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", *metricsListen)
	}

	rt.Start()
	logger.Info("gwemu started", "interfaces", len(rt.Interfaces), "streams", len(rt.Streams))

	if store != nil {
		go persistSnapshots(rt, store, runID, logger)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("gwemu stopping")
	rt.Stop()
}

func parseIOMode(s string) (ringio.Mode, error) {
	switch s {
	case "ring":
		return ringio.ModeRing, nil
	case "raw":
		return ringio.ModeRaw, nil
	case "disabled":
		return ringio.ModeDisabled, nil
	default:
		return 0, &invalidIOModeError{s}
	}
}

type invalidIOModeError struct{ value string }

func (e *invalidIOModeError) Error() string {
	return "invalid -io-mode " + e.value + ": must be ring, raw, or disabled"
}

// persistSnapshots samples every stream's current Record once per second
// and writes the batch to store, for the lifetime of the run.
func persistSnapshots(rt *orchestrate.Runtime, store *results.Store, runID int64, logger *logging.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for now := range ticker.C {
		records := make([]stats.Record, 0, len(rt.Streams))
		for _, s := range rt.Streams {
			records = append(records, rt.Stats.Snapshot(s))
		}
		if err := store.RecordSnapshots(runID, now, records); err != nil {
			logger.Warn("record snapshots failed", "error", err)
		}
	}
}

// Package main runs a simulated fleet of audio sensor devices. Each
// device cycles through generating dummy audio, compressing it by
// decimation, encoding a payload and attempting a (simulated) uplink,
// while a status server exposes the run over HTTP and WebSocket.
//
// Usage:
//
//	sensorfleet [-config path/to/config.json]
//
// If -config is not specified, the simulator looks for config.json in
// the same directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/omnisent/sensorfleet/internal/archive"
	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/omnisent/sensorfleet/internal/console"
	"github.com/omnisent/sensorfleet/internal/cyclelog"
	"github.com/omnisent/sensorfleet/internal/fleet"
	"github.com/omnisent/sensorfleet/internal/metric"
	"github.com/omnisent/sensorfleet/internal/notify"
	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/omnisent/sensorfleet/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	snap := cfg.Snapshot()
	slog.Info("fleet configured",
		"name", snap.FleetName,
		"devices", len(snap.Devices),
		"strategy", snap.Strategy,
		"cycles_per_device", totalCycles(snap.Devices))

	cycleLog, err := cyclelog.NewLogger(snap.EventLogPath)
	if err != nil {
		slog.Warn("cycle event log disabled", "path", snap.EventLogPath, "error", err)
		cycleLog = nil
	}

	var archiver *archive.Archiver
	if snap.ArchiveEnabled {
		archiver, err = archive.New(cfg)
		if err != nil {
			slog.Warn("payload archive disabled", "error", err)
			archiver = nil
		}
	}

	metrics := metric.New()
	notifier := notify.NewFailureNotifier(cfg)

	flt := fleet.New(cfg, fleet.Options{
		Console:  console.New(os.Stdout),
		CycleLog: cycleLog,
		Metrics:  metrics,
		Notifier: notifier,
		Archiver: archiver,
	})

	srv := NewServer(cfg, flt, metrics)
	httpServer := srv.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- flt.Run(ctx)
	}()

	select {
	case err = <-runDone:
		if err != nil {
			slog.Info("fleet run interrupted", "reason", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown requested, waiting for devices")
		select {
		case <-runDone:
		case <-time.After(types.ShutdownTimeout):
			slog.Warn("devices did not stop within shutdown timeout")
		}
	}

	status := flt.Status()
	slog.Info("fleet run finished",
		"state", status.State,
		"cycles", status.Cycles,
		"failures", status.Failures)

	srv.version.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if archiver != nil {
		if err := archiver.Cleanup(); err != nil {
			slog.Warn("archive cleanup failed", "error", err)
		}
		archiver.Close()
	}
	if cycleLog != nil {
		if err := cycleLog.Close(); err != nil {
			slog.Warn("failed to close cycle event log", "error", err)
		}
	}

	// Failed transmissions are part of normal operation; a completed
	// run always exits cleanly.
	slog.Info("shutdown complete")
}

// totalCycles sums the configured cycle counts across devices.
func totalCycles(devices []config.DeviceConfig) int {
	total := 0
	for _, d := range devices {
		total += d.Cycles
	}
	return total
}

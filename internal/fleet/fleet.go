// Package fleet runs a set of simulated sensor devices concurrently and
// fans each cycle outcome out to the event log, metrics, notifications
// and the payload archive.
package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/omnisent/sensorfleet/internal/archive"
	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/omnisent/sensorfleet/internal/console"
	"github.com/omnisent/sensorfleet/internal/cyclelog"
	"github.com/omnisent/sensorfleet/internal/metric"
	"github.com/omnisent/sensorfleet/internal/notify"
	"github.com/omnisent/sensorfleet/internal/sensor"
	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/omnisent/sensorfleet/internal/util"
	"golang.org/x/sync/errgroup"
)

// EventFunc receives a cycle event for fan-out to live subscribers.
type EventFunc func(types.WSCycleEvent)

// Fleet owns the device set for one run. Construct with New, then call
// Run once; a Fleet is not reusable across runs.
type Fleet struct {
	cfg      *config.Config
	console  *console.Logger
	cycleLog *cyclelog.Logger
	metrics  *metric.Metrics
	notifier *notify.FailureNotifier
	archiver *archive.Archiver

	mu        sync.RWMutex
	state     types.FleetState
	devices   []*sensor.Device
	byID      map[string]*sensor.Device
	startedAt time.Time
	onEvent   EventFunc
}

// Options carries the shared collaborators devices report into.
// Any field may be nil; the corresponding fan-out is skipped.
type Options struct {
	Console  *console.Logger
	CycleLog *cyclelog.Logger
	Metrics  *metric.Metrics
	Notifier *notify.FailureNotifier
	Archiver *archive.Archiver
}

// New builds a Fleet with one device per configured DeviceConfig.
func New(cfg *config.Config, opts Options) *Fleet {
	if opts.Console == nil {
		opts.Console = console.New(nil)
	}

	f := &Fleet{
		cfg:      cfg,
		console:  opts.Console,
		cycleLog: opts.CycleLog,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		archiver: opts.Archiver,
		state:    types.FleetIdle,
		byID:     make(map[string]*sensor.Device),
	}

	snap := cfg.Snapshot()
	for _, dc := range snap.Devices {
		dev := sensor.NewDevice(dc, sensor.Options{
			Strategy:      snap.Strategy,
			Workers:       snap.Workers,
			SuccessRate:   snap.SuccessRate,
			TransmitDelay: time.Duration(snap.TransmitDelayMs) * time.Millisecond,
			Console:       opts.Console,
			OnOutcome:     f.handleOutcome,
		})
		f.devices = append(f.devices, dev)
		f.byID[dev.ID()] = dev
	}

	return f
}

// SetEventFunc installs the live event fan-out. Call before Run.
func (f *Fleet) SetEventFunc(fn EventFunc) {
	f.mu.Lock()
	f.onEvent = fn
	f.mu.Unlock()
}

// DeviceCount returns the number of configured devices.
func (f *Fleet) DeviceCount() int {
	return len(f.devices)
}

// Run executes every device to completion. It returns nil when all
// devices finished their cycles, or ctx.Err() after cancellation. Failed
// transmissions are an expected outcome, not an error.
func (f *Fleet) Run(ctx context.Context) error {
	f.mu.Lock()
	f.state = types.FleetRunning
	f.startedAt = time.Now()
	f.mu.Unlock()

	if f.notifier != nil {
		f.notifier.Reset()
	}

	// Watch for cancellation so status flips to "stopping" while
	// devices wind down.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			f.setState(types.FleetStopping)
		case <-watchDone:
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for _, dev := range f.devices {
		g.Go(func() error {
			f.logDevice(cyclelog.DeviceStarted, dev.ID(), "device started")
			if f.metrics != nil {
				f.metrics.DevicesActive.Inc()
			}
			defer func() {
				if f.metrics != nil {
					f.metrics.DevicesActive.Dec()
				}
			}()

			err := dev.Run(ctx)
			if err != nil {
				f.logDevice(cyclelog.DeviceStopped, dev.ID(), "device stopped before completing its cycles")
				return err
			}
			f.logDevice(cyclelog.DeviceDone, dev.ID(), "device completed all cycles")
			return nil
		})
	}

	err := g.Wait()
	close(watchDone)

	if err != nil && errors.Is(err, context.Canceled) {
		f.setState(types.FleetIdle)
		return err
	}
	f.setState(types.FleetDone)
	return err
}

func (f *Fleet) setState(s types.FleetState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// handleOutcome fans one finished cycle out to every collaborator.
// Device goroutines call this concurrently.
func (f *Fleet) handleOutcome(deviceID string, cycle int, outcome types.CycleOutcome, stats sensor.CycleStats) {
	if f.cycleLog != nil {
		if err := f.cycleLog.LogOutcome(deviceID, cycle, outcome, stats.Duration.Milliseconds()); err != nil {
			slog.Warn("failed to log cycle event", "device", deviceID, "error", err)
		}
	}

	if f.metrics != nil {
		f.metrics.ObserveCycle(deviceID, outcome.Transmitted, stats.RawSamples, stats.Duration.Seconds())
	}

	if f.archiver != nil && stats.Payload != "" {
		if err := f.archiver.Append(deviceID, cycle, stats.Payload, outcome.Transmitted); err != nil {
			slog.Warn("failed to archive payload", "device", deviceID, "error", err)
		}
	}

	if f.notifier != nil {
		streak := 0
		if dev, ok := f.byID[deviceID]; ok {
			streak = dev.Status().ConsecutiveFailures
		}
		f.notifier.HandleOutcome(deviceID, outcome.Transmitted, streak)
	}

	f.mu.RLock()
	onEvent := f.onEvent
	f.mu.RUnlock()
	if onEvent != nil {
		onEvent(types.WSCycleEvent{
			Type:     "cycle",
			DeviceID: deviceID,
			Cycle:    cycle,
			Outcome:  outcome,
		})
	}
}

func (f *Fleet) logDevice(eventType cyclelog.EventType, deviceID, message string) {
	if f.cycleLog == nil {
		return
	}
	if err := f.cycleLog.LogDevice(eventType, deviceID, message); err != nil {
		slog.Warn("failed to log device event", "device", deviceID, "error", err)
	}
}

// Status returns the aggregate fleet status.
func (f *Fleet) Status() types.FleetStatus {
	f.mu.RLock()
	state := f.state
	startedAt := f.startedAt
	f.mu.RUnlock()

	status := types.FleetStatus{
		State:       state,
		DeviceCount: len(f.devices),
	}
	if !startedAt.IsZero() {
		status.Uptime = util.FormatDuration(time.Since(startedAt).Milliseconds())
	}

	for _, dev := range f.devices {
		ds := dev.Status()
		status.Cycles += ds.CyclesCompleted
		status.Failures += ds.Failures
	}
	return status
}

// DeviceStatuses returns a snapshot of every device's status keyed by ID.
func (f *Fleet) DeviceStatuses() map[string]types.DeviceStatus {
	statuses := make(map[string]types.DeviceStatus, len(f.devices))
	for _, dev := range f.devices {
		statuses[dev.ID()] = dev.Status()
	}
	return statuses
}

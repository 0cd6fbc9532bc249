// Package sensor implements the simulated sensor device and its cycle
// state machine: generate, compress, encode, transmit, cool down.
package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/omnisent/sensorfleet/internal/audio"
	"github.com/omnisent/sensorfleet/internal/config"
	"github.com/omnisent/sensorfleet/internal/console"
	"github.com/omnisent/sensorfleet/internal/transmit"
	"github.com/omnisent/sensorfleet/internal/types"
	"github.com/omnisent/sensorfleet/internal/util"
)

// CycleStats carries the measurable facts of one completed cycle to the
// outcome callback.
type CycleStats struct {
	RawSamples       int           // Generated block length
	DecimatedSamples int           // Block length after 4:1 decimation
	Payload          string        // Encoded payload text
	Duration         time.Duration // Wall time excluding cooldown
}

// OutcomeFunc receives the result of every completed cycle.
type OutcomeFunc func(deviceID string, cycle int, outcome types.CycleOutcome, stats CycleStats)

// Options configures a Device beyond its immutable DeviceConfig.
type Options struct {
	Strategy      types.Strategy   // Cycle scheduling strategy
	Workers       int              // Worker count for parallel stages
	SuccessRate   float64          // Transmit success probability
	TransmitDelay time.Duration    // Simulated channel latency
	Console       *console.Logger  // Device console sink
	OnOutcome     OutcomeFunc      // Optional cycle outcome callback
}

// Device owns one simulated sensor: its immutable configuration, its
// private random sources and its cycle loop. Devices share no mutable
// state with each other.
type Device struct {
	cfg      config.DeviceConfig
	strategy types.Strategy
	workers  int

	console   *console.Logger
	generator *audio.Generator
	channel   *transmit.Simulator
	onOutcome OutcomeFunc

	mu     sync.RWMutex
	status types.DeviceStatus
}

// NewDevice constructs a device. Each device gets its own generator and
// channel simulator seeded independently, so concurrently constructed
// devices never draw correlated values.
func NewDevice(cfg config.DeviceConfig, opts Options) *Device {
	if !opts.Strategy.Valid() {
		opts.Strategy = types.StrategySequential
	}
	if opts.Console == nil {
		opts.Console = console.New(nil)
	}

	genWorkers := 1
	if opts.Strategy == types.StrategyParallel {
		genWorkers = max(opts.Workers, 2)
	}

	return &Device{
		cfg:       cfg,
		strategy:  opts.Strategy,
		workers:   max(opts.Workers, 1),
		console:   opts.Console,
		generator: audio.NewGenerator(util.Seed(cfg.ID), genWorkers),
		channel:   transmit.NewSimulator(util.Seed(cfg.ID+"/channel"), opts.SuccessRate, opts.TransmitDelay),
		onOutcome: opts.OnOutcome,
		status: types.DeviceStatus{
			ID:          cfg.ID,
			State:       types.StateIdle,
			Strategy:    opts.Strategy,
			CyclesTotal: cfg.Cycles,
		},
	}
}

// ID returns the device identity.
func (d *Device) ID() string {
	return d.cfg.ID
}

// Status returns a copy of the current device status.
func (d *Device) Status() types.DeviceStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Run executes the configured number of cycles sequentially. Cycle N+1
// never starts before cycle N has fully cooled down. Cancellation lets
// the in-flight cycle finish its current stage set and stops before the
// next cycle begins; Run then returns ctx.Err().
func (d *Device) Run(ctx context.Context) error {
	for i := 1; i <= d.cfg.Cycles; i++ {
		if err := ctx.Err(); err != nil {
			d.setState(types.StateIdle)
			return err
		}

		d.runCycle(i)

		// Cooling blocks only this device's own loop.
		d.setState(types.StateCooling)
		select {
		case <-ctx.Done():
			d.setState(types.StateIdle)
			return ctx.Err()
		case <-time.After(d.cfg.Cooldown()):
		}
		d.setState(types.StateIdle)
	}
	return nil
}

// setState updates the published cycle phase.
func (d *Device) setState(s types.CycleState) {
	d.mu.Lock()
	d.status.State = s
	d.mu.Unlock()
}

// recordOutcome folds a finished cycle into the device status.
func (d *Device) recordOutcome(outcome types.CycleOutcome, stats CycleStats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.CyclesCompleted++
	d.status.LastCycleDurationMs = stats.Duration.Milliseconds()
	if outcome.Transmitted {
		d.status.Transmitted++
		d.status.ConsecutiveFailures = 0
	} else {
		d.status.Failures++
		d.status.ConsecutiveFailures++
	}
	if stats.Payload != "" {
		d.status.LastPayloadPreview = previewOf(stats.Payload)
	}
}

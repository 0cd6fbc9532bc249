// Package types provides shared type definitions used across the simulator.
package types

import (
	"time"
)

// CycleState represents the current phase of a device's sensor cycle.
type CycleState string

const (
	// StateIdle indicates the device is between cycles or not running.
	StateIdle CycleState = "idle"
	// StateGenerating indicates the device is producing raw samples.
	StateGenerating CycleState = "generating"
	// StateCompressing indicates the device is decimating the raw block.
	StateCompressing CycleState = "compressing"
	// StateEncoding indicates the device is building the payload text.
	StateEncoding CycleState = "encoding"
	// StateTransmitting indicates the device is attempting an uplink.
	StateTransmitting CycleState = "transmitting"
	// StateCooling indicates the device is in its post-cycle cooldown.
	StateCooling CycleState = "cooling"
)

// Strategy selects how a device schedules the work inside one cycle.
type Strategy string

const (
	// StrategySequential runs generate, compress, encode and transmit
	// one after another on the device's own goroutine.
	StrategySequential Strategy = "sequential"
	// StrategyStaged launches generation alongside a placeholder stage
	// and joins both before compression reads any sample.
	StrategyStaged Strategy = "staged"
	// StrategyParallel partitions generation and decimation across a
	// bounded worker set.
	StrategyParallel Strategy = "parallel"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySequential, StrategyStaged, StrategyParallel:
		return true
	}
	return false
}

// Simulation defaults for a stock sensor device.
const (
	// DefaultSampleRate is the default sampling rate in samples per second.
	DefaultSampleRate = 400000
	// DefaultBitDepth is the default amplitude resolution in bits.
	DefaultBitDepth = 24
	// DefaultDurationSec is the default capture duration per cycle in seconds.
	DefaultDurationSec = 1
	// DefaultCooldown is the default delay between cycles.
	DefaultCooldown = 2000 * time.Millisecond
	// DefaultCycles is the default number of cycles a device runs.
	DefaultCycles = 3
	// DecimationFactor is the fixed compression ratio (keep 1 in 4).
	DecimationFactor = 4
	// MaxPayloadSamples bounds how many samples a payload carries.
	MaxPayloadSamples = 100
	// PayloadPreviewChars is how much of the payload is echoed on success.
	PayloadPreviewChars = 120
	// DefaultSuccessRate is the per-attempt transmit success probability.
	DefaultSuccessRate = 0.9
)

// Bit depth bounds. Values outside this range are clamped rather than
// rejected so a degenerate config cannot crash a cycle.
const (
	MinBitDepth = 1
	MaxBitDepth = 32
)

// ErrTransmissionFailure is the error tag recorded on a failed uplink.
// It is the only recoverable condition the simulator models.
const ErrTransmissionFailure = "transmission_failure"

// CycleOutcome summarizes one completed sensor cycle.
type CycleOutcome struct {
	Attempted   bool   `json:"attempted"`       // A cycle was started
	Transmitted bool   `json:"transmitted"`     // Transmit attempt succeeded
	Error       string `json:"error,omitempty"` // ErrTransmissionFailure or empty
}

// DeviceStatus contains runtime status for a single simulated device.
type DeviceStatus struct {
	ID                  string     `json:"id"`                              // Device identity
	State               CycleState `json:"state"`                           // Current cycle phase
	Strategy            Strategy   `json:"strategy"`                        // Scheduling strategy
	CyclesCompleted     int        `json:"cycles_completed"`                // Cycles finished so far
	CyclesTotal         int        `json:"cycles_total"`                    // Configured cycle count
	Transmitted         int        `json:"transmitted"`                     // Successful uplinks
	Failures            int        `json:"failures"`                        // Failed uplinks
	ConsecutiveFailures int        `json:"consecutive_failures,omitzero"`   // Current failure streak
	LastPayloadPreview  string     `json:"last_payload_preview,omitzero"`   // Preview of last encoded payload
	LastCycleDurationMs int64      `json:"last_cycle_duration_ms,omitzero"` // Wall time of last cycle, cooldown excluded
}

// Done reports whether the device has finished all configured cycles.
func (s *DeviceStatus) Done() bool {
	return s.CyclesCompleted >= s.CyclesTotal
}

// FleetState represents the lifecycle state of the whole fleet run.
type FleetState string

const (
	// FleetIdle indicates the fleet has not started.
	FleetIdle FleetState = "idle"
	// FleetRunning indicates at least one device is still cycling.
	FleetRunning FleetState = "running"
	// FleetStopping indicates cancellation was requested.
	FleetStopping FleetState = "stopping"
	// FleetDone indicates every device finished its cycles.
	FleetDone FleetState = "done"
)

// FleetStatus aggregates status for the whole fleet.
type FleetStatus struct {
	State       FleetState `json:"state"`           // Fleet lifecycle state
	Uptime      string     `json:"uptime,omitzero"` // Time since the run started
	DeviceCount int        `json:"device_count"`    // Configured devices
	Cycles      int        `json:"cycles"`          // Total cycles completed
	Failures    int        `json:"failures"`        // Total failed uplinks
}

// WSStatusResponse is sent to clients with full fleet and device status.
type WSStatusResponse struct {
	Type    string                  `json:"type"`    // Message type identifier
	Fleet   FleetStatus             `json:"fleet"`   // Fleet summary
	Devices map[string]DeviceStatus `json:"devices"` // Per-device status keyed by ID
	Version VersionInfo             `json:"version"` // Build and update info
}

// WSCycleEvent is pushed to clients when a device completes a cycle.
type WSCycleEvent struct {
	Type     string       `json:"type"`      // Message type identifier
	DeviceID string       `json:"device_id"` // Device that completed the cycle
	Cycle    int          `json:"cycle"`     // 1-based cycle index
	Outcome  CycleOutcome `json:"outcome"`   // Cycle result
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}

// Timing constants for fleet orchestration.
const (
	// ShutdownTimeout is the duration to wait for devices to wind down
	// after cancellation before the process gives up on a clean stop.
	ShutdownTimeout = 3000 * time.Millisecond
	// StatusPushInterval is how often the WebSocket event loop pushes
	// status updates to connected clients.
	StatusPushInterval = 1000 * time.Millisecond
)

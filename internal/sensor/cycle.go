package sensor

import (
	"sync"
	"time"

	"github.com/omnisent/sensorfleet/internal/audio"
	"github.com/omnisent/sensorfleet/internal/payload"
	"github.com/omnisent/sensorfleet/internal/types"
)

// Console messages emitted by the cycle stages. The texts are part of the
// device's observable contract and must not change.
const (
	MsgCycleStart   = "---- Sensor Cycle Start ----"
	MsgWake         = "Wake: Generating dummy audio data..."
	MsgProcessing   = "Processing: Compressing audio data..."
	MsgPreparing    = "Transmit: Preparing payload..."
	MsgSending      = "Transmit: Sending data to cloud..."
	MsgSendFailed   = "Transmit: Failed to send data."
	MsgRetryLogging = "Error: Transmission failed. Logging for retry."
	MsgSleep        = "Sleep: Entering sleep mode..."
)

// runCycle executes one full generate-compress-encode-transmit pass and
// reports the outcome. The cooldown is handled by the caller.
func (d *Device) runCycle(cycle int) {
	start := time.Now()
	d.console.Log(MsgCycleStart)

	block := d.generate()
	decimated := d.compress(block)

	d.setState(types.StateEncoding)
	d.console.Log(MsgPreparing)
	encoded := payload.New(d.cfg.ID, decimated, d.console.Now()).Encode()

	d.setState(types.StateTransmitting)
	outcome := types.CycleOutcome{Attempted: true}
	if d.channel.Attempt(encoded) {
		outcome.Transmitted = true
		d.console.Log(MsgSending)
		d.console.Print(previewOf(encoded))
	} else {
		outcome.Error = types.ErrTransmissionFailure
		d.console.Log(MsgSendFailed)
		d.console.Log(MsgRetryLogging)
	}

	d.console.Log(MsgSleep)

	stats := CycleStats{
		RawSamples:       len(block),
		DecimatedSamples: len(decimated),
		Payload:          encoded,
		Duration:         time.Since(start),
	}

	d.recordOutcome(outcome, stats)
	if d.onOutcome != nil {
		d.onOutcome(d.cfg.ID, cycle, outcome, stats)
	}
}

// generate runs the Generating stage under the device's strategy. The
// staged strategy launches generation alongside a placeholder stage and
// joins both before returning, so the compress stage never reads a block
// that is still being written.
func (d *Device) generate() []int {
	d.setState(types.StateGenerating)
	d.console.Log(MsgWake)

	switch d.strategy {
	case types.StrategyStaged:
		var block []int
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			block = d.generator.Generate(d.cfg.SampleRate, d.cfg.BitDepth, d.cfg.DurationSec)
		}()
		go func() {
			// Placeholder stage. The join below keeps compression
			// strictly after generation has filled the block.
			defer wg.Done()
		}()
		wg.Wait()
		return block
	default:
		return d.generator.Generate(d.cfg.SampleRate, d.cfg.BitDepth, d.cfg.DurationSec)
	}
}

// compress runs the Compressing stage. Output order always matches the
// input regardless of strategy.
func (d *Device) compress(block []int) []int {
	d.setState(types.StateCompressing)
	d.console.Log(MsgProcessing)

	if d.strategy == types.StrategyParallel {
		return audio.DecimateParallel(block, d.workers)
	}
	return audio.Decimate(block)
}

// previewOf shortens an encoded payload for console echo and status.
func previewOf(encoded string) string {
	return payload.Preview(encoded)
}

// Package planner computes the Sample-Offset Plan: the fixed sequence of
// sample-clock deltas the byte decoder advances through to land on the
// center of each bit, parity, and stop-bit position of a UART character,
// given only the configured bit rate and the acquisition sample rate.
package planner

import (
	"fmt"
	"math"

	"github.com/saleae/modbus-analyzer/pkg/config"
)

// Plan is the precomputed offset sequence for one run. It never changes
// once built, since bit rate and sample rate are fixed for the run.
type Plan struct {
	// FirstBitOffset is the delta from the falling edge that starts a
	// character to the center of its first data bit: 1.5 bit-periods.
	FirstBitOffset int64

	// InterBitOffsets holds one entry per remaining data bit, each one
	// full bit-period past the previous sample point.
	InterBitOffsets []int64

	HasParity    bool
	ParityOffset int64 // one bit-period past the last data bit, if HasParity

	// TwoStopBits is set for the parity-less, two-stop-bit framing; in
	// that case StopBitOffset is applied twice in a row to probe both
	// stop bits.
	TwoStopBits   bool
	StopBitOffset int64
}

// clockGenerator hands out sample deltas for successive fractional-bit-period
// advances, carrying the rounding remainder forward so accumulated error
// across a whole character never exceeds half a sample.
type clockGenerator struct {
	samplesPerBit float64
	residual      float64
}

func (g *clockGenerator) advance(periods float64) int64 {
	ideal := periods*g.samplesPerBit + g.residual
	samples := math.Round(ideal)
	g.residual = ideal - samples
	return int64(samples)
}

// New builds the Plan for a run with the given bit rate, sample rate,
// character width, and parity/stop-bit framing. It fails only when the
// bit rate is zero, the sample rate can't resolve bit edges reliably
// (below 4x the bit rate), or the character width is nonsensical.
func New(bitRate, sampleRate uint32, bitsPerTransfer int, parityAndStop config.ParityAndStop) (Plan, error) {
	if bitRate == 0 {
		return Plan{}, fmt.Errorf("planner: bit rate must be positive")
	}
	if uint64(bitRate)*4 > uint64(sampleRate) {
		return Plan{}, fmt.Errorf("planner: sample rate %d is less than 4x the bit rate %d", sampleRate, bitRate)
	}
	if bitsPerTransfer < 1 {
		return Plan{}, fmt.Errorf("planner: bits per transfer must be positive, got %d", bitsPerTransfer)
	}

	gen := &clockGenerator{samplesPerBit: float64(sampleRate) / float64(bitRate)}

	var p Plan
	p.FirstBitOffset = gen.advance(1.5)
	for i := 0; i < bitsPerTransfer-1; i++ {
		p.InterBitOffsets = append(p.InterBitOffsets, gen.advance(1.0))
	}

	switch parityAndStop {
	case config.EvenOne, config.OddOne:
		p.HasParity = true
		p.ParityOffset = gen.advance(1.0)
		p.StopBitOffset = gen.advance(1.0)
	case config.NoneTwo:
		p.TwoStopBits = true
		p.StopBitOffset = gen.advance(1.0)
	default: // NoneOne
		p.StopBitOffset = gen.advance(1.0)
	}

	return p, nil
}

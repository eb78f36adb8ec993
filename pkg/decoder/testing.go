package decoder

import (
	"math/bits"

	"github.com/saleae/modbus-analyzer/pkg/config"
	"github.com/saleae/modbus-analyzer/pkg/planner"
)

// FixtureBitReader is a synthetic, bit-exact BitReader built from a flat
// sample slice. It exists so the table-driven tests in this package (and
// any consumer that wants to exercise Worker without real hardware) can
// check exact sample-index behavior, which a live serial capture can
// never reproduce bit-for-bit.
type FixtureBitReader struct {
	samples []BitState
	idx     int
}

func (f *FixtureBitReader) AdvanceToNextEdge() {
	if f.idx >= len(f.samples) {
		return
	}
	cur := f.samples[f.idx]
	for f.idx < len(f.samples) && f.samples[f.idx] == cur {
		f.idx++
	}
}

func (f *FixtureBitReader) Advance(delta int64) { f.idx += int(delta) }

func (f *FixtureBitReader) BitState() BitState {
	if f.idx < 0 || f.idx >= len(f.samples) {
		return High // idle
	}
	return f.samples[f.idx]
}

func (f *FixtureBitReader) SampleNumber() uint64 { return uint64(f.idx) }

func (f *FixtureBitReader) TrackMinimumPulseWidth() {}

// WaveformBuilder assembles a FixtureBitReader's sample slice one logical
// byte at a time, using the same character-framing rules (§4.1/§4.2) the
// byte decoder itself implements, so a built waveform decodes back to
// exactly the bytes given it.
type WaveformBuilder struct {
	cfg           config.Config
	samplesPerBit int
	samples       []BitState
}

// NewWaveformBuilder sets up a builder whose bit period is exactly
// samplesPerBit samples wide — callers should pick a samplesPerBit/baud
// combination with an exact ratio (e.g. 8 samples/bit) so offsets never
// round, keeping fixtures deterministic.
func NewWaveformBuilder(cfg config.Config, samplesPerBit int) *WaveformBuilder {
	return &WaveformBuilder{cfg: cfg, samplesPerBit: samplesPerBit}
}

// PushByte appends one framed character encoding value's low BitsPerTransfer
// bits.
func (b *WaveformBuilder) PushByte(value byte) {
	numBits := b.cfg.BitsPerTransfer
	mask := uint64(1)<<uint(numBits) - 1
	data0 := uint64(value) & mask
	if b.cfg.Inverted {
		data0 = (^data0) & mask
	}

	elecIdle, elecStart := High, Low
	if b.cfg.Inverted {
		elecIdle, elecStart = Low, High
	}

	rep := func(s BitState, n int) {
		for i := 0; i < n; i++ {
			b.samples = append(b.samples, s)
		}
	}

	rep(elecStart, b.samplesPerBit)
	for i := 0; i < numBits; i++ {
		idx := i
		if b.cfg.ShiftOrder == config.MSBFirst {
			idx = numBits - 1 - i
		}
		s := Low
		if data0&(1<<uint(idx)) != 0 {
			s = High
		}
		rep(s, b.samplesPerBit)
	}

	switch b.cfg.ParityAndStop {
	case config.EvenOne, config.OddOne:
		isEven := bits.OnesCount64(data0)%2 == 0
		wantStart := isEven
		if b.cfg.ParityAndStop == config.OddOne {
			wantStart = !isEven
		}
		if wantStart {
			rep(elecStart, b.samplesPerBit)
		} else {
			rep(elecIdle, b.samplesPerBit)
		}
		rep(elecIdle, b.samplesPerBit)
	case config.NoneTwo:
		rep(elecIdle, b.samplesPerBit)
		rep(elecIdle, b.samplesPerBit)
	default:
		rep(elecIdle, b.samplesPerBit)
	}
}

// PushBytes appends one framed character per byte of data, in order.
func (b *WaveformBuilder) PushBytes(data []byte) {
	for _, v := range data {
		b.PushByte(v)
	}
}

// Reader returns a BitReader over the waveform built so far.
func (b *WaveformBuilder) Reader() *FixtureBitReader {
	return &FixtureBitReader{samples: b.samples}
}

// planFor is a test convenience wrapper around planner.New using the
// builder's own configuration and sample period.
func (b *WaveformBuilder) planFor() (planner.Plan, error) {
	sampleRate := uint32(b.samplesPerBit) * b.cfg.BitRate
	return planner.New(b.cfg.BitRate, sampleRate, b.cfg.BitsPerTransfer, b.cfg.ParityAndStop)
}

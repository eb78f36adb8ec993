package decoder

import (
	"math/bits"

	"github.com/saleae/modbus-analyzer/pkg/config"
	"github.com/saleae/modbus-analyzer/pkg/planner"
)

// byteDecoder implements the byte layer (§4.2): reading one framed UART
// character off a BitReader, checking its parity and stop bit(s), and
// leaving Dot/Square/ErrorDot markers at every sample point it probes.
type byteDecoder struct {
	br      BitReader
	sink    FrameSink
	channel int
	plan    planner.Plan

	numBits       int
	shiftOrder    config.ShiftOrder
	parityAndStop config.ParityAndStop
	inverted      bool
	ascii         bool

	// highState/lowState are the electrical levels that mean "mark"
	// (idle/stop) and "space" (start bit) respectively; they swap when
	// the line is inverted, matching the original's mBitHigh/mBitLow.
	highState, lowState BitState
}

func newByteDecoder(br BitReader, sink FrameSink, channel int, plan planner.Plan, cfg config.Config) *byteDecoder {
	d := &byteDecoder{
		br:            br,
		sink:          sink,
		channel:       channel,
		plan:          plan,
		numBits:       cfg.BitsPerTransfer,
		shiftOrder:    cfg.ShiftOrder,
		parityAndStop: cfg.ParityAndStop,
		inverted:      cfg.Inverted,
		ascii:         cfg.Mode.IsASCII(),
	}
	if cfg.Inverted {
		d.highState, d.lowState = Low, High
	} else {
		d.highState, d.lowState = High, Low
	}
	return d
}

// readRawByte performs one full framed-character read: waits for the
// falling edge that starts a character, samples each data bit at its
// planned offset, then checks parity and stop bit(s), leaving markers at
// every probed sample. It returns the raw byte value and the sample range
// the character occupied.
func (d *byteDecoder) readRawByte() (value uint64, start, end uint64) {
	d.br.AdvanceToNextEdge()
	start = d.br.SampleNumber()
	marker := start

	rawBits := make([]BitState, 0, d.numBits)

	d.br.Advance(d.plan.FirstBitOffset)
	marker += uint64(d.plan.FirstBitOffset)
	rawBits = append(rawBits, d.br.BitState())
	d.sink.AddMarker(marker, MarkerDot, d.channel)

	for _, off := range d.plan.InterBitOffsets {
		d.br.Advance(off)
		marker += uint64(off)
		rawBits = append(rawBits, d.br.BitState())
		d.sink.AddMarker(marker, MarkerDot, d.channel)
	}

	raw := assembleBits(rawBits, d.shiftOrder)
	value = raw
	if d.inverted {
		mask := uint64(1)<<uint(d.numBits) - 1
		value = (^raw) & mask
	}

	switch d.parityAndStop {
	case config.EvenOne, config.OddOne:
		d.br.Advance(d.plan.ParityOffset)
		marker += uint64(d.plan.ParityOffset)
		d.checkExpected(marker, d.parityExpectsMark(raw))

		d.br.Advance(d.plan.StopBitOffset)
		marker += uint64(d.plan.StopBitOffset)
		d.checkExpected(marker, true)
	case config.NoneTwo:
		d.br.Advance(d.plan.StopBitOffset)
		marker += uint64(d.plan.StopBitOffset)
		d.checkExpectedNonFatal(marker, true)

		d.br.Advance(d.plan.StopBitOffset)
		marker += uint64(d.plan.StopBitOffset)
		d.checkExpected(marker, true)
	default: // NoneOne
		d.br.Advance(d.plan.StopBitOffset)
		marker += uint64(d.plan.StopBitOffset)
		d.checkExpected(marker, true)
	}

	end = d.br.SampleNumber()
	return value, start, end
}

// parityExpectsMark reports whether the parity bit is expected to sit at
// the mark (idle/high) level, given the raw pre-inversion data bits: even
// parity wants the mark level when the data has an odd number of set bits
// (making the total even), odd parity wants it when the count is even.
func (d *byteDecoder) parityExpectsMark(raw uint64) bool {
	mask := uint64(1)<<uint(d.numBits) - 1
	isEven := bits.OnesCount64(raw&mask)%2 == 0
	if d.parityAndStop == config.EvenOne {
		return !isEven
	}
	return isEven
}

func (d *byteDecoder) checkExpected(marker uint64, expectMark bool) {
	want := d.lowState
	if expectMark {
		want = d.highState
	}
	if d.br.BitState() == want {
		d.sink.AddMarker(marker, MarkerSquare, d.channel)
	} else {
		d.sink.AddMarker(marker, MarkerErrorDot, d.channel)
	}
}

// checkExpectedNonFatal probes a framing bit that doesn't gate a Square
// marker of its own accord — used for the first of two stop-bit probes in
// NoneTwo framing, where only a mismatch is worth flagging.
func (d *byteDecoder) checkExpectedNonFatal(marker uint64, expectMark bool) {
	want := d.lowState
	if expectMark {
		want = d.highState
	}
	if d.br.BitState() != want {
		d.sink.AddMarker(marker, MarkerErrorDot, d.channel)
	}
}

// assembleBits packs sampled bit states into a value according to the
// configured shift order: LSBFirst means the first bit sampled is the
// least-significant bit of the result.
func assembleBits(rawBits []BitState, order config.ShiftOrder) uint64 {
	var v uint64
	n := len(rawBits)
	for i, b := range rawBits {
		if b != High {
			continue
		}
		if order == config.LSBFirst {
			v |= 1 << uint(i)
		} else {
			v |= 1 << uint(n-1-i)
		}
	}
	return v
}

func hexNibble(c byte) uint64 {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0')
	case c >= 'A' && c <= 'F':
		return uint64(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return uint64(c-'a') + 10
	default:
		return 0
	}
}

// ReadByte reads one logical byte of the message stream. In RTU mode that
// is exactly one framed character. In ASCII mode it is either a single
// delimiter character (':' or CR/LF, returned unchanged with isDelimiter
// set) or a pair of framed characters decoded as a hex nibble pair.
func (d *byteDecoder) ReadByte() (value uint64, start, end uint64, isDelimiter bool) {
	if !d.ascii {
		value, start, end = d.readRawByte()
		return value, start, end, false
	}

	c1, s1, e1 := d.readRawByte()
	if c1 == ':' || c1 == '\n' || c1 == '\r' {
		return c1, s1, e1, true
	}
	c2, _, e2 := d.readRawByte()
	value = (hexNibble(byte(c1)) << 4) | hexNibble(byte(c2))
	return value, s1, e2, false
}

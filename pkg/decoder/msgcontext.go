package decoder

import "github.com/saleae/modbus-analyzer/pkg/checksum"

// messageCtx bundles the byte decoder with per-message state: the running
// checksum accumulator, the sink and channel every shape parser writes
// through, and a malformed flag set by shape parsers that detect a
// structural anomaly (currently only the odd-length file-record case) that
// should surface as a checksum error on the message's END frame even
// though the wire checksum itself might still match.
type messageCtx struct {
	bd      *byteDecoder
	sink    FrameSink
	channel int
	ascii   bool

	crc checksum.CRC16
	lrc checksum.LRC

	lastEnd   uint64
	malformed bool
}

func newMessageCtx(bd *byteDecoder, sink FrameSink, channel int, ascii bool) *messageCtx {
	return &messageCtx{
		bd:      bd,
		sink:    sink,
		channel: channel,
		ascii:   ascii,
		crc:     checksum.NewCRC16(),
	}
}

// readByte reads one payload byte, folding it into the running checksum.
func (m *messageCtx) readByte() (value byte, start, end uint64) {
	v, s, e, _ := m.bd.ReadByte()
	value = byte(v)
	if m.ascii {
		m.lrc = m.lrc.Update(value)
	} else {
		m.crc = m.crc.Update(value)
	}
	m.lastEnd = e
	return value, s, e
}

// readChecksum reads the message's trailing checksum: two bytes (low, then
// high) for RTU's CRC-16, one byte for ASCII's LRC-8 (returned as lo, with
// hi always zero to keep the packing formula uniform). It does not fold
// the checksum bytes themselves into the running accumulator.
func (m *messageCtx) readChecksum() (lo, hi byte, start, end uint64) {
	if m.ascii {
		v, s, e, _ := m.bd.ReadByte()
		m.lastEnd = e
		return byte(v), 0, s, e
	}
	lo64, s, _, _ := m.bd.ReadByte()
	hi64, _, e, _ := m.bd.ReadByte()
	m.lastEnd = e
	return byte(lo64), byte(hi64), s, e
}

// match reports whether the received checksum bytes agree with the
// running accumulator, and folds in any structural anomaly a shape parser
// flagged via malformed.
func (m *messageCtx) match(lo, hi byte) bool {
	ok := m.checksumMatches(lo, hi)
	return ok && !m.malformed
}

func (m *messageCtx) checksumMatches(lo, hi byte) bool {
	if m.ascii {
		return m.lrc.Final() == lo
	}
	wantLo, wantHi := m.crc.Bytes()
	return wantLo == lo && wantHi == hi
}

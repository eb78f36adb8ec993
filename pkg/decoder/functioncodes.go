package decoder

// Modbus public function codes, per §4.4.
const (
	FnReadCoils                  = 0x01
	FnReadDiscreteInputs         = 0x02
	FnReadHoldingRegisters       = 0x03
	FnReadInputRegisters         = 0x04
	FnWriteSingleCoil            = 0x05
	FnWriteSingleRegister        = 0x06
	FnReadExceptionStatus        = 0x07
	FnDiagnostic                 = 0x08
	FnGetComEventCounter         = 0x0B
	FnGetComEventLog             = 0x0C
	FnWriteMultipleCoils         = 0x0F
	FnWriteMultipleRegisters     = 0x10
	FnReportServerID             = 0x11
	FnReadFileRecord             = 0x14
	FnWriteFileRecord            = 0x15
	FnMaskWriteRegister          = 0x16
	FnReadWriteMultipleRegisters = 0x17
	FnReadFIFOQueue              = 0x18

	// exceptionBit marks a response function code as a server exception:
	// the request's function code with its top bit set.
	exceptionBit = 0x80
)

// packHeader implements the canonical header packing of §6.4:
// data1 = addr<<56 | func<<48 | P1a<<40 | P1b<<32 | P2a<<24 | P2b<<16 | hi<<8 | lo
func packHeader(addr, fn, p1a, p1b, p2a, p2b, hi, lo byte) uint64 {
	return uint64(addr)<<56 | uint64(fn)<<48 |
		uint64(p1a)<<40 | uint64(p1b)<<32 |
		uint64(p2a)<<24 | uint64(p2b)<<16 |
		uint64(hi)<<8 | uint64(lo)
}

// packChecksum implements the END-frame packing of §6.4: data1 =
// crc_hi<<8 | crc_lo (crc_hi is always zero for ASCII's single-byte LRC).
func packChecksum(hi, lo byte) uint64 {
	return uint64(hi)<<8 | uint64(lo)
}

// packDataByte implements the DATA-frame byte packing of §6.4:
// data1 = byte<<32.
func packDataByte(b byte) uint64 {
	return uint64(b) << 32
}

// packDataWord implements the DATA-frame word packing of §6.4:
// data1 = hi<<40 | lo<<32.
func packDataWord(hi, lo byte) uint64 {
	return uint64(hi)<<40 | uint64(lo)<<32
}

// packFileSubreq implements the FILE_SUBREQ packing of §6.4:
// data1 = reftype<<48 | filenum_hi<<40 | filenum_lo<<32 |
//
//	recnum_hi<<24 | recnum_lo<<16 | reclen_hi<<8 | reclen_lo
func packFileSubreq(reftype, fnHi, fnLo, recHi, recLo, lenHi, lenLo byte) uint64 {
	return uint64(reftype)<<48 |
		uint64(fnHi)<<40 | uint64(fnLo)<<32 |
		uint64(recHi)<<24 | uint64(recLo)<<16 |
		uint64(lenHi)<<8 | uint64(lenLo)
}

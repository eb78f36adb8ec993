package decoder

// The functions in this file implement the request/response shapes of
// §4.4: the small number of wire layouts (A/B/C/D) that every function
// code's message body reduces to. The shapes that serve both a request and
// its structurally identical response (shapeA, shapeB, maskWriteRegister;
// e.g. Mask Write Register echoes the same body both ways) take a Kind.

// shapeA is the 4-payload-byte-plus-checksum shape (Read Coils/Discrete/
// Holding/Input Registers and Write Single Coil/Register/Diagnostic
// requests; the corresponding single-word responses).
func shapeA(mc *messageCtx, addr, fn byte, frameStart uint64, kind Kind) {
	p1a, _, _ := mc.readByte()
	p1b, _, _ := mc.readByte()
	p2a, _, _ := mc.readByte()
	p2b, _, _ := mc.readByte()

	lo, hi, _, end := mc.readChecksum()
	ok := mc.match(lo, hi)
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: end, Kind: kind,
		Data1:         packHeader(addr, fn, p1a, p1b, p2a, p2b, hi, lo),
		ChecksumError: !ok,
	})
	mc.sink.Commit()
}

// shapeAFIFO is Read FIFO Queue's request: shape A with just a 2-byte
// address field and the remaining payload bytes zeroed.
func shapeAFIFO(mc *messageCtx, addr, fn byte, frameStart uint64) {
	p1a, _, _ := mc.readByte()
	p1b, _, _ := mc.readByte()

	lo, hi, _, end := mc.readChecksum()
	ok := mc.match(lo, hi)
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: end, Kind: KindRequest,
		Data1:         packHeader(addr, fn, p1a, p1b, 0, 0, hi, lo),
		ChecksumError: !ok,
	})
	mc.sink.Commit()
}

// shapeB is the payload-less shape (Read Exception Status, Get Com Event
// Counter/Log, Report Server ID requests).
func shapeB(mc *messageCtx, addr, fn byte, frameStart uint64, kind Kind) {
	lo, hi, _, end := mc.readChecksum()
	ok := mc.match(lo, hi)
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: end, Kind: kind,
		Data1:         packHeader(addr, fn, 0, 0, 0, 0, hi, lo),
		ChecksumError: !ok,
	})
	mc.sink.Commit()
}

// shapeException is a server exception response: function code with the
// top bit set, one exception-code byte, then the checksum.
func shapeException(mc *messageCtx, addr, fn byte, frameStart uint64) {
	excCode, _, _ := mc.readByte()
	lo, hi, _, end := mc.readChecksum()
	ok := mc.match(lo, hi)
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: end, Kind: KindException,
		Data1:         packHeader(addr, fn, excCode, 0, 0, 0, hi, lo),
		ChecksumError: !ok,
	})
	mc.sink.Commit()
}

// shapeExceptionStatusResponse is Read Exception Status's response: a
// single status byte packed into the header frame.
func shapeExceptionStatusResponse(mc *messageCtx, addr, fn byte, frameStart uint64) {
	status, _, _ := mc.readByte()
	lo, hi, _, end := mc.readChecksum()
	ok := mc.match(lo, hi)
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: end, Kind: KindResponse,
		Data1:         packHeader(addr, fn, status, 0, 0, 0, hi, lo),
		ChecksumError: !ok,
	})
	mc.sink.Commit()
}

// shapeBytesResponse is the 1-byte-count-then-raw-bytes shape (Read Coils/
// Discrete Inputs and Report Server ID responses): a RESPONSE header
// frame carrying the count, one DATA frame per byte, and a final END
// frame carrying the checksum.
func shapeBytesResponse(mc *messageCtx, addr, fn byte, frameStart uint64) {
	count, _, headerEnd := mc.readByte()
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindResponse,
		Data1: packHeader(addr, fn, 0, 0, 0, 0, 0, count),
	})
	mc.sink.Commit()

	for i := 0; i < int(count); i++ {
		b, s, e := mc.readByte()
		mc.sink.AddFrame(Frame{StartSample: s, EndSample: e, Kind: KindData, Data1: packDataByte(b)})
		mc.sink.Commit()
	}

	emitEnd(mc)
}

// shapeWordsResponse is the 1-byte-count-then-16-bit-words shape (Read
// Holding/Input Registers and Read/Write Multiple Registers responses).
func shapeWordsResponse(mc *messageCtx, addr, fn byte, frameStart uint64) {
	count, _, headerEnd := mc.readByte()
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindResponse,
		Data1: packHeader(addr, fn, 0, 0, 0, 0, 0, count),
	})
	mc.sink.Commit()

	for i := 0; i < int(count)/2; i++ {
		hiB, s, _ := mc.readByte()
		loB, _, e := mc.readByte()
		mc.sink.AddFrame(Frame{StartSample: s, EndSample: e, Kind: KindData, Data1: packDataWord(hiB, loB)})
		mc.sink.Commit()
	}

	emitEnd(mc)
}

// maskWriteRegister is Mask Write Register's single wire shape, shared by
// request and response: register address, AND-mask, OR-mask, checksum.
// The OR-mask goes in Data2 since the header word is already full.
func maskWriteRegister(mc *messageCtx, addr, fn byte, frameStart uint64, kind Kind) {
	regHi, _, _ := mc.readByte()
	regLo, _, _ := mc.readByte()
	andHi, _, _ := mc.readByte()
	andLo, _, _ := mc.readByte()
	orHi, _, _ := mc.readByte()
	orLo, _, _ := mc.readByte()

	lo, hi, _, end := mc.readChecksum()
	ok := mc.match(lo, hi)
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: end, Kind: kind,
		Data1:         packHeader(addr, fn, regHi, regLo, andHi, andLo, hi, lo),
		Data2:         uint64(orHi)<<8 | uint64(orLo),
		ChecksumError: !ok,
	})
	mc.sink.Commit()
}

// emitEnd reads and emits the trailing END frame common to every
// multi-frame message shape.
func emitEnd(mc *messageCtx) {
	lo, hi, start, end := mc.readChecksum()
	ok := mc.match(lo, hi)
	mc.sink.AddFrame(Frame{
		StartSample: start, EndSample: end, Kind: KindEnd,
		Data1:         packChecksum(hi, lo),
		ChecksumError: !ok,
	})
	mc.sink.Commit()
}

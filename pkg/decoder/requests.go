package decoder

// requestWriteMultipleCoils is Write Multiple Coils' request: a shape-A
// style header (address, quantity, byte count) followed by byte_count raw
// data bytes and a checksum.
func requestWriteMultipleCoils(mc *messageCtx, addr, fn byte, frameStart uint64) {
	p1a, _, _ := mc.readByte()
	p1b, _, _ := mc.readByte()
	p2a, _, _ := mc.readByte()
	p2b, _, _ := mc.readByte()
	count, _, headerEnd := mc.readByte()

	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindRequest,
		Data1: packHeader(addr, fn, p1a, p1b, p2a, p2b, 0, count),
	})
	mc.sink.Commit()

	for i := 0; i < int(count); i++ {
		b, s, e := mc.readByte()
		mc.sink.AddFrame(Frame{StartSample: s, EndSample: e, Kind: KindData, Data1: packDataByte(b)})
		mc.sink.Commit()
	}

	emitEnd(mc)
}

// requestWriteMultipleRegisters is Write Multiple Registers' request: the
// same header shape, followed by byte_count/2 16-bit words.
func requestWriteMultipleRegisters(mc *messageCtx, addr, fn byte, frameStart uint64) {
	p1a, _, _ := mc.readByte()
	p1b, _, _ := mc.readByte()
	p2a, _, _ := mc.readByte()
	p2b, _, _ := mc.readByte()
	count, _, headerEnd := mc.readByte()

	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindRequest,
		Data1: packHeader(addr, fn, p1a, p1b, p2a, p2b, 0, count),
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

// requestReadWriteMultipleRegisters is Read/Write Multiple Registers'
// request: a read address/quantity and a write address/quantity/byte-count
// header, followed by the write data words. The write address and
// quantity don't fit in the header word, so they go in Data2.
func requestReadWriteMultipleRegisters(mc *messageCtx, addr, fn byte, frameStart uint64) {
	readAddrHi, _, _ := mc.readByte()
	readAddrLo, _, _ := mc.readByte()
	readQtyHi, _, _ := mc.readByte()
	readQtyLo, _, _ := mc.readByte()
	writeAddrHi, _, _ := mc.readByte()
	writeAddrLo, _, _ := mc.readByte()
	writeQtyHi, _, _ := mc.readByte()
	writeQtyLo, _, _ := mc.readByte()
	count, _, headerEnd := mc.readByte()

	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindRequest,
		Data1: packHeader(addr, fn, readAddrHi, readAddrLo, readQtyHi, readQtyLo, 0, count),
		Data2: uint64(writeAddrHi)<<24 | uint64(writeAddrLo)<<16 | uint64(writeQtyHi)<<8 | uint64(writeQtyLo),
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

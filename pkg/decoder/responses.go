package decoder

// responseGetComEventLog is Get Com Event Log's response: an overall byte
// count, a 2-byte status word, a 2-byte event count, a 2-byte message
// count, and byte_count-6 trailing event bytes. Status and event count are
// packed into Data2; the message count has no room left in either word,
// matching the "several variants" note of §4.4.2 — this is the variant
// this port carries forward.
func responseGetComEventLog(mc *messageCtx, addr, fn byte, frameStart uint64) {
	count, _, _ := mc.readByte()
	statusHi, _, _ := mc.readByte()
	statusLo, _, _ := mc.readByte()
	evHi, _, _ := mc.readByte()
	evLo, _, _ := mc.readByte()
	_, _, _ = mc.readByte() // message count, high byte
	_, _, headerEnd := mc.readByte()

	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindResponse,
		Data1: packHeader(addr, fn, 0, 0, 0, 0, 0, count),
		Data2: uint64(statusHi)<<24 | uint64(statusLo)<<16 | uint64(evHi)<<8 | uint64(evLo),
	})
	mc.sink.Commit()

	remaining := int(count) - 6
	if remaining < 0 {
		remaining = 0
	}
	for i := 0; i < remaining; i++ {
		b, s, e := mc.readByte()
		mc.sink.AddFrame(Frame{StartSample: s, EndSample: e, Kind: KindData, Data1: packDataByte(b)})
		mc.sink.Commit()
	}

	emitEnd(mc)
}

// responseReadFIFOQueue is Read FIFO Queue's response: a 2-byte byte
// count, a 2-byte FIFO count, then fifo_count 16-bit words. The FIFO
// count's two wire bytes are combined second-byte-high, first-byte-low
// (§9(i)): that is the RTU path's ordering in the original analyzer, and
// this port prefers it for both transports rather than reproducing the
// ASCII path's swapped, buggy formula.
func responseReadFIFOQueue(mc *messageCtx, addr, fn byte, frameStart uint64) {
	countHi, _, _ := mc.readByte()
	countLo, _, _ := mc.readByte()
	fifoFirst, _, _ := mc.readByte()
	fifoSecond, _, headerEnd := mc.readByte()

	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindResponse,
		Data1: packHeader(addr, fn, 0, 0, 0, 0, countHi, countLo),
	})
	mc.sink.Commit()

	fifoCount := int(fifoSecond)<<8 | int(fifoFirst)
	for i := 0; i < fifoCount; i++ {
		hiB, s, _ := mc.readByte()
		loB, _, e := mc.readByte()
		mc.sink.AddFrame(Frame{StartSample: s, EndSample: e, Kind: KindData, Data1: packDataWord(hiB, loB)})
		mc.sink.Commit()
	}

	emitEnd(mc)
}

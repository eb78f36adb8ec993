package decoder

// readFileSubHeader reads the 7-byte sub-request header shared by Read
// File Record's request and Write File Record's request/response:
// reference type, file number, record number, record length.
func readFileSubHeader(mc *messageCtx) (reftype, fnHi, fnLo, recHi, recLo, lenHi, lenLo byte, start, end uint64) {
	reftype, start, _ = mc.readByte()
	fnHi, _, _ = mc.readByte()
	fnLo, _, _ = mc.readByte()
	recHi, _, _ = mc.readByte()
	recLo, _, _ = mc.readByte()
	lenHi, _, _ = mc.readByte()
	lenLo, _, end = mc.readByte()
	return
}

// requestReadFileRecord is Read File Record's request: an overall byte
// count followed by that many bytes' worth of fixed 7-byte sub-requests,
// each emitted as a FILE_SUBREQ frame with no data words.
func requestReadFileRecord(mc *messageCtx, addr, fn byte, frameStart uint64) {
	count, _, headerEnd := mc.readByte()
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindRequest,
		Data1: packHeader(addr, fn, 0, 0, 0, 0, 0, count),
	})
	mc.sink.Commit()

	n := int(count) / 7
	for i := 0; i < n; i++ {
		reftype, fnHi, fnLo, recHi, recLo, lenHi, lenLo, s, e := readFileSubHeader(mc)
		mc.sink.AddFrame(Frame{
			StartSample: s, EndSample: e, Kind: KindFileSubreq,
			Data1: packFileSubreq(reftype, fnHi, fnLo, recHi, recLo, lenHi, lenLo),
		})
		mc.sink.Commit()
	}

	emitEnd(mc)
}

// responseReadFileRecord is Read File Record's response: an overall byte
// count followed by repeated sub-responses, each a 1-byte sub-length, a
// 1-byte reference type, and (sub_length-1) data bytes read as 16-bit
// words. A sub-length whose data portion is odd is treated as malformed
// (§9 open question ii): the words that divide evenly are still emitted,
// the dangling byte is consumed and discarded, and the message's END
// frame is flagged with a checksum error regardless of whether the wire
// checksum itself matches.
func responseReadFileRecord(mc *messageCtx, addr, fn byte, frameStart uint64) {
	count, _, headerEnd := mc.readByte()
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: KindResponse,
		Data1: packHeader(addr, fn, 0, 0, 0, 0, 0, count),
	})
	mc.sink.Commit()

	remaining := int(count)
	for remaining > 0 {
		subLen, subStart, _ := mc.readByte()
		refType, _, subHeaderEnd := mc.readByte()
		remaining -= 2

		mc.sink.AddFrame(Frame{
			StartSample: subStart, EndSample: subHeaderEnd, Kind: KindFileSubreq,
			Data1: uint64(refType) << 48,
		})
		mc.sink.Commit()

		dataBytes := int(subLen) - 1
		if dataBytes < 0 {
			dataBytes = 0
		}
		words := dataBytes / 2
		for i := 0; i < words; i++ {
			hiB, s, _ := mc.readByte()
			loB, _, e := mc.readByte()
			mc.sink.AddFrame(Frame{StartSample: s, EndSample: e, Kind: KindData, Data1: packDataWord(hiB, loB)})
			mc.sink.Commit()
			remaining -= 2
		}
		if dataBytes%2 != 0 {
			_, _, _ = mc.readByte()
			remaining--
			mc.malformed = true
		}
	}

	emitEnd(mc)
}

// fileRecordWrite is Write File Record's wire shape, shared by request and
// response: an overall byte count, then repeated 7-byte sub-headers each
// followed by record_length 16-bit data words.
func fileRecordWrite(mc *messageCtx, addr, fn byte, frameStart uint64, headerKind Kind) {
	count, _, headerEnd := mc.readByte()
	mc.sink.AddFrame(Frame{
		StartSample: frameStart, EndSample: headerEnd, Kind: headerKind,
		Data1: packHeader(addr, fn, 0, 0, 0, 0, 0, count),
	})
	mc.sink.Commit()

	remaining := int(count)
	for remaining > 0 {
		reftype, fnHi, fnLo, recHi, recLo, lenHi, lenLo, s, e := readFileSubHeader(mc)
		remaining -= 7

		mc.sink.AddFrame(Frame{
			StartSample: s, EndSample: e, Kind: KindFileSubreq,
			Data1: packFileSubreq(reftype, fnHi, fnLo, recHi, recLo, lenHi, lenLo),
		})
		mc.sink.Commit()

		reclen := int(lenHi)<<8 | int(lenLo)
		for i := 0; i < reclen; i++ {
			hiB, ds, _ := mc.readByte()
			loB, _, de := mc.readByte()
			mc.sink.AddFrame(Frame{StartSample: ds, EndSample: de, Kind: KindData, Data1: packDataWord(hiB, loB)})
			mc.sink.Commit()
		}
		remaining -= reclen * 2
	}

	emitEnd(mc)
}

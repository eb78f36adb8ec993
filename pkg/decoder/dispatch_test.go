package decoder

import (
	"testing"

	"github.com/saleae/modbus-analyzer/pkg/checksum"
	"github.com/saleae/modbus-analyzer/pkg/config"
)

const testSamplesPerBit = 8

func rtuConfig() config.Config {
	return config.Config{
		BitRate:         9600,
		BitsPerTransfer: 8,
		ParityAndStop:   config.NoneOne,
		Mode:            config.RTUClient,
	}
}

func asciiConfig() config.Config {
	return config.Config{
		BitRate:         9600,
		BitsPerTransfer: 8,
		ParityAndStop:   config.NoneOne,
		Mode:            config.ASCIIClient,
	}
}

func newTestDecoder(t *testing.T, cfg config.Config, data []byte) (*byteDecoder, *SliceSink) {
	t.Helper()
	wb := NewWaveformBuilder(cfg, testSamplesPerBit)
	wb.PushBytes(data)
	plan, err := wb.planFor()
	if err != nil {
		t.Fatalf("planFor: %v", err)
	}
	sink := &SliceSink{}
	bd := newByteDecoder(wb.Reader(), sink, 0, plan, cfg)
	return bd, sink
}

// readHeader reads the address and function-code bytes and returns a
// ready-to-use message context, matching the first steps of Worker.Run.
func readHeader(bd *byteDecoder, sink FrameSink, ascii bool) (*messageCtx, byte, byte) {
	addr, _, _, _ := bd.ReadByte()
	fn, _, _, _ := bd.ReadByte()
	mc := newMessageCtx(bd, sink, 0, ascii)
	if ascii {
		mc.lrc = mc.lrc.Update(byte(addr)).Update(byte(fn))
	} else {
		mc.crc = mc.crc.Update(byte(addr)).Update(byte(fn))
	}
	return mc, byte(addr), byte(fn)
}

func appendCRC(payload []byte) []byte {
	lo, hi := checksum.NewCRC16().UpdateAll(payload).Bytes()
	return append(append([]byte{}, payload...), lo, hi)
}

func TestReadHoldingRegistersRequest(t *testing.T) {
	payload := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03}
	data := appendCRC(payload)
	lo, hi := data[len(data)-2], data[len(data)-1]

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchRequest(mc, addr, fn, 0)

	if len(sink.Frames) != 1 {
		t.Fatalf("len(Frames) = %d, want 1", len(sink.Frames))
	}
	f := sink.Frames[0]
	if f.Kind != KindRequest {
		t.Errorf("Kind = %v, want KindRequest", f.Kind)
	}
	if f.ChecksumError {
		t.Error("ChecksumError = true, want false")
	}
	want := packHeader(0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, hi, lo)
	if f.Data1 != want {
		t.Errorf("Data1 = 0x%016X, want 0x%016X", f.Data1, want)
	}
}

func TestReadHoldingRegistersResponse(t *testing.T) {
	payload := []byte{0x11, 0x03, 0x06, 0x00, 0x01, 0x02, 0x00, 0x30, 0x00}
	data := appendCRC(payload)

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchResponse(mc, addr, fn, 0)

	if len(sink.Frames) != 5 { // header + 3 words + end
		t.Fatalf("len(Frames) = %d, want 5", len(sink.Frames))
	}
	if sink.Frames[0].Kind != KindResponse {
		t.Errorf("Frames[0].Kind = %v, want KindResponse", sink.Frames[0].Kind)
	}
	for i := 1; i <= 3; i++ {
		if sink.Frames[i].Kind != KindData {
			t.Errorf("Frames[%d].Kind = %v, want KindData", i, sink.Frames[i].Kind)
		}
	}
	last := sink.Frames[4]
	if last.Kind != KindEnd {
		t.Errorf("Frames[4].Kind = %v, want KindEnd", last.Kind)
	}
	if last.ChecksumError {
		t.Error("ChecksumError = true, want false")
	}

	wantWord0 := packDataWord(0x00, 0x01)
	if sink.Frames[1].Data1 != wantWord0 {
		t.Errorf("Frames[1].Data1 = 0x%X, want 0x%X", sink.Frames[1].Data1, wantWord0)
	}
}

func TestExceptionResponse(t *testing.T) {
	payload := []byte{0x11, 0x83, 0x02}
	data := appendCRC(payload)

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchResponse(mc, addr, fn, 0)

	if len(sink.Frames) != 1 {
		t.Fatalf("len(Frames) = %d, want 1", len(sink.Frames))
	}
	f := sink.Frames[0]
	if f.Kind != KindException {
		t.Errorf("Kind = %v, want KindException", f.Kind)
	}
	if f.ChecksumError {
		t.Error("ChecksumError = true, want false")
	}
}

func TestChecksumMismatchFlagged(t *testing.T) {
	payload := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03}
	data := appendCRC(payload)
	data[len(data)-1] ^= 0xFF // corrupt the high CRC byte

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchRequest(mc, addr, fn, 0)

	if !sink.Frames[0].ChecksumError {
		t.Error("ChecksumError = false, want true for corrupted CRC")
	}
}

func TestWriteMultipleCoilsRequest(t *testing.T) {
	payload := []byte{0x11, 0x0F, 0x00, 0x13, 0x00, 0x0A, 0x02, 0xCD, 0x01}
	data := appendCRC(payload)

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchRequest(mc, addr, fn, 0)

	if len(sink.Frames) != 4 { // header + 2 data bytes + end
		t.Fatalf("len(Frames) = %d, want 4", len(sink.Frames))
	}
	if sink.Frames[1].Data1 != packDataByte(0xCD) {
		t.Errorf("Frames[1].Data1 = 0x%X, want 0x%X", sink.Frames[1].Data1, packDataByte(0xCD))
	}
	if sink.Frames[3].Kind != KindEnd {
		t.Errorf("Frames[3].Kind = %v, want KindEnd", sink.Frames[3].Kind)
	}
}

func TestMaskWriteRegister(t *testing.T) {
	payload := []byte{0x11, 0x16, 0x00, 0x04, 0x00, 0xF2, 0x00, 0x25}
	data := appendCRC(payload)

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchRequest(mc, addr, fn, 0)

	if len(sink.Frames) != 1 {
		t.Fatalf("len(Frames) = %d, want 1", len(sink.Frames))
	}
	f := sink.Frames[0]
	if f.Data2 != uint64(0x0025) {
		t.Errorf("Data2 = 0x%X, want 0x0025", f.Data2)
	}
}

func TestReadFileRecordRequest(t *testing.T) {
	payload := []byte{
		0x11, 0x14,
		0x0E, // byte count = 14 = two 7-byte sub-requests
		0x06, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02,
		0x06, 0x00, 0x03, 0x00, 0x09, 0x00, 0x02,
	}
	data := appendCRC(payload)

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchRequest(mc, addr, fn, 0)

	if len(sink.Frames) != 4 { // header + 2 subreqs + end
		t.Fatalf("len(Frames) = %d, want 4", len(sink.Frames))
	}
	if sink.Frames[1].Kind != KindFileSubreq || sink.Frames[2].Kind != KindFileSubreq {
		t.Errorf("expected both sub-frames to be KindFileSubreq, got %v, %v", sink.Frames[1].Kind, sink.Frames[2].Kind)
	}
}

func TestReadFileRecordResponseOddLengthFlagged(t *testing.T) {
	// sub-length 4 => 3 data bytes, an odd count: malformed per §9.
	payload := []byte{
		0x11, 0x14,
		0x05,             // overall byte count
		0x04, 0x06, 0x00, 0x01, 0x02, // sub_length=4, reftype=6, then 3 data bytes (1 word + 1 dangling byte)
	}
	data := appendCRC(payload)

	bd, sink := newTestDecoder(t, rtuConfig(), data)
	mc, addr, fn := readHeader(bd, sink, false)
	dispatchResponse(mc, addr, fn, 0)

	last := sink.Frames[len(sink.Frames)-1]
	if last.Kind != KindEnd {
		t.Fatalf("last frame Kind = %v, want KindEnd", last.Kind)
	}
	if !last.ChecksumError {
		t.Error("ChecksumError = false, want true for odd sub-record length")
	}
}

func TestASCIIRoundTrip(t *testing.T) {
	payload := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03}
	lrc := checksum.LRC8(payload)

	// Encode the logical ASCII byte stream directly: ':' + hex pairs per
	// payload byte + lrc, then CR LF. Each logical byte becomes two
	// framed characters except the delimiters.
	var logical []byte
	logical = append(logical, ':')
	hexDigits := "0123456789ABCDEF"
	appendHex := func(b byte) {
		logical = append(logical, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	for _, b := range payload {
		appendHex(b)
	}
	appendHex(lrc)
	logical = append(logical, '\r', '\n')

	bd, sink := newTestDecoder(t, asciiConfig(), logical)

	for {
		v, _, _, isDelim := bd.ReadByte()
		if isDelim && v == ':' {
			break
		}
	}

	addr, addrStart, _, _ := bd.ReadByte()
	fn, _, _, _ := bd.ReadByte()
	mc := newMessageCtx(bd, sink, 0, true)
	mc.lrc = mc.lrc.Update(byte(addr)).Update(byte(fn))
	frameStart := addrStart

	dispatchRequest(mc, byte(addr), byte(fn), frameStart)
	bd.ReadByte() // CR
	bd.ReadByte() // LF

	if len(sink.Frames) != 1 {
		t.Fatalf("len(Frames) = %d, want 1", len(sink.Frames))
	}
	if sink.Frames[0].ChecksumError {
		t.Error("ChecksumError = true, want false for a valid ASCII frame")
	}
	if sink.Frames[0].StartSample != addrStart {
		t.Errorf("StartSample = %d, want %d (address byte's start sample, not the colon's)", sink.Frames[0].StartSample, addrStart)
	}
}

func TestNewWorkerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Config{BitRate: 9600, SampleRate: 9600, BitsPerTransfer: 8, Mode: config.RTUClient}
	if _, err := NewWorker(nil, nil, 0, cfg); err == nil {
		t.Error("NewWorker: expected error for sample rate below 4x bit rate")
	}
}

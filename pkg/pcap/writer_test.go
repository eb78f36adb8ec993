package pcap

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/saleae/modbus-analyzer/pkg/decoder"
)

func TestGlobalHeader(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, binary.LittleEndian, DLTUser0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	b := buf.Bytes()
	if len(b) != 24 {
		t.Fatalf("global header length = %d, want 24", len(b))
	}

	magic := binary.LittleEndian.Uint32(b[0:4])
	if magic != 0xa1b2c3d4 {
		t.Errorf("magic = 0x%08x, want 0xa1b2c3d4", magic)
	}

	major := binary.LittleEndian.Uint16(b[4:6])
	if major != 2 {
		t.Errorf("version major = %d, want 2", major)
	}

	minor := binary.LittleEndian.Uint16(b[6:8])
	if minor != 4 {
		t.Errorf("version minor = %d, want 4", minor)
	}

	snaplen := binary.LittleEndian.Uint32(b[16:20])
	if snaplen != 65535 {
		t.Errorf("snaplen = %d, want 65535", snaplen)
	}

	linkType := binary.LittleEndian.Uint32(b[20:24])
	if linkType != 147 {
		t.Errorf("link type = %d, want 147", linkType)
	}
}

func TestGlobalHeaderRTACLinkType(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, binary.LittleEndian, DLTRTACSer); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	linkType := binary.LittleEndian.Uint32(buf.Bytes()[20:24])
	if linkType != 149 {
		t.Errorf("link type = %d, want 149", linkType)
	}
}

func TestWritePacket(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, binary.LittleEndian, DLTUser0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	buf.Reset() // discard global header for this test

	ts := time.Date(2025, 1, 15, 10, 30, 45, 123456789, time.UTC)
	data := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}

	if err := w.WritePacket(ts, data); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	b := buf.Bytes()
	if len(b) != 16+len(data) {
		t.Fatalf("packet length = %d, want %d", len(b), 16+len(data))
	}

	tsSec := binary.LittleEndian.Uint32(b[0:4])
	if tsSec != uint32(ts.Unix()) {
		t.Errorf("ts_sec = %d, want %d", tsSec, ts.Unix())
	}

	tsUsec := binary.LittleEndian.Uint32(b[4:8])
	wantUsec := uint32(123456789 / 1000)
	if tsUsec != wantUsec {
		t.Errorf("ts_usec = %d, want %d", tsUsec, wantUsec)
	}

	capLen := binary.LittleEndian.Uint32(b[8:12])
	if capLen != uint32(len(data)) {
		t.Errorf("cap_len = %d, want %d", capLen, len(data))
	}

	if !bytes.Equal(b[16:], data) {
		t.Errorf("packet data = %x, want %x", b[16:], data)
	}
}

func TestMultiplePackets(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, binary.LittleEndian, DLTUser0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	ts1 := time.Date(2025, 1, 15, 10, 30, 45, 0, time.UTC)
	data1 := []byte{0x01, 0x02, 0x03}

	ts2 := time.Date(2025, 1, 15, 10, 30, 46, 500000000, time.UTC)
	data2 := []byte{0x04, 0x05}

	if err := w.WritePacket(ts1, data1); err != nil {
		t.Fatalf("WritePacket 1: %v", err)
	}
	if err := w.WritePacket(ts2, data2); err != nil {
		t.Fatalf("WritePacket 2: %v", err)
	}

	b := buf.Bytes()
	expectedLen := 24 + (16 + len(data1)) + (16 + len(data2))
	if len(b) != expectedLen {
		t.Fatalf("total length = %d, want %d", len(b), expectedLen)
	}

	pkt2Offset := 24 + 16 + len(data1)
	tsSec2 := binary.LittleEndian.Uint32(b[pkt2Offset : pkt2Offset+4])
	if tsSec2 != uint32(ts2.Unix()) {
		t.Errorf("packet 2 ts_sec = %d, want %d", tsSec2, ts2.Unix())
	}
}

func TestFrameWriterEmitsRTACHeaderAndFlags(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2025, 1, 15, 10, 30, 45, 0, time.UTC)
	fw, err := NewFrameWriter(&buf, start, 76800)
	if err != nil {
		t.Fatalf("NewFrameWriter: %v", err)
	}

	f := decoder.Frame{StartSample: 76800, Kind: decoder.KindRequest, Data1: 0x1122334455667788}
	fw.AddFrame(f)
	fw.Commit()

	b := buf.Bytes()
	if len(b) < 24+16+12+8 {
		t.Fatalf("output too short: %d bytes", len(b))
	}
	rec := b[24+16:] // skip global header + pcap-record header
	tsSec := binary.BigEndian.Uint32(rec[0:4])
	wantSec := uint32(start.Add(time.Second).Unix())
	if tsSec != wantSec {
		t.Errorf("rtac ts_sec = %d, want %d", tsSec, wantSec)
	}
	if rec[8] != f.Flags() {
		t.Errorf("rtac event type = 0x%02X, want 0x%02X", rec[8], f.Flags())
	}
	data1 := binary.BigEndian.Uint64(rec[12:20])
	if data1 != f.Data1 {
		t.Errorf("data1 = 0x%016X, want 0x%016X", data1, f.Data1)
	}
}

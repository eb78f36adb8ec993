package pcap

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/saleae/modbus-analyzer/pkg/decoder"
)

// FrameWriter adapts a Writer into a decoder.FrameSink. Each committed
// Frame becomes one pcap record: a 12-byte RTAC-Serial-style header
// (capture-relative timestamp, an event-type byte from Frame.Flags, and
// 3 reserved bytes) followed by the frame's data1/data2 payload words,
// big-endian, data2 omitted when the frame's shape doesn't use it.
//
// The underlying io.Writer is wrapped in a bufio.Writer so a busy capture
// doesn't take a syscall per frame; Commit flushes it.
type FrameWriter struct {
	pw         *Writer
	buf        *bufio.Writer
	startTime  time.Time
	sampleRate uint32
}

// NewFrameWriter opens a pcap stream over w using DLTRTACSer, anchoring
// frame timestamps at startTime + StartSample/sampleRate.
func NewFrameWriter(w io.Writer, startTime time.Time, sampleRate uint32) (*FrameWriter, error) {
	buf := bufio.NewWriter(w)
	pw, err := NewWriter(buf, binary.LittleEndian, DLTRTACSer)
	if err != nil {
		return nil, err
	}
	return &FrameWriter{pw: pw, buf: buf, startTime: startTime, sampleRate: sampleRate}, nil
}

func (fw *FrameWriter) timeFor(sample uint64) time.Time {
	if fw.sampleRate == 0 {
		return fw.startTime
	}
	offset := time.Duration(float64(sample) / float64(fw.sampleRate) * float64(time.Second))
	return fw.startTime.Add(offset)
}

// rtacHeader builds the 12-byte RTAC Serial header (big-endian) for the
// given timestamp and event type.
func rtacHeader(ts time.Time, eventType byte) []byte {
	hdr := make([]byte, 12)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(ts.Unix()))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(ts.Nanosecond()/1000))
	hdr[8] = eventType
	return hdr
}

// usesData2 reports whether a frame of this kind carries a second payload
// word: only request and response header frames ever have Data2 packed
// (Mask Write Register, Read/Write Multiple Registers, Get Com Event Log).
func usesData2(k decoder.Kind) bool {
	switch k {
	case decoder.KindRequest, decoder.KindResponse:
		return true
	default:
		return false
	}
}

func (fw *FrameWriter) AddFrame(f decoder.Frame) {
	payload := rtacHeader(fw.timeFor(f.StartSample), f.Flags())
	payload = binary.BigEndian.AppendUint64(payload, f.Data1)
	if usesData2(f.Kind) {
		payload = binary.BigEndian.AppendUint64(payload, f.Data2)
	}
	if err := fw.pw.WritePacket(fw.timeFor(f.StartSample), payload); err != nil {
		// The frame stream has no error return; a write failure here
		// means the underlying file/pipe is gone, which the caller
		// will also observe on the next Commit or on process exit.
		return
	}
}

func (fw *FrameWriter) Commit() {
	fw.buf.Flush()
}

// AddMarker is a no-op: pcap records carry frames, not per-bit markers.
func (fw *FrameWriter) AddMarker(sample uint64, kind decoder.MarkerKind, channel int) {}

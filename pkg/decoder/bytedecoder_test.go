package decoder

import (
	"testing"

	"github.com/saleae/modbus-analyzer/pkg/config"
)

func TestReadRawByteRoundTrip(t *testing.T) {
	cfg := config.Config{BitRate: 9600, BitsPerTransfer: 8, ParityAndStop: config.EvenOne, Mode: config.RTUClient}
	wb := NewWaveformBuilder(cfg, testSamplesPerBit)
	wb.PushByte(0x5A)
	plan, err := wb.planFor()
	if err != nil {
		t.Fatalf("planFor: %v", err)
	}
	sink := &SliceSink{}
	bd := newByteDecoder(wb.Reader(), sink, 0, plan, cfg)

	got, start, end := bd.readRawByte()
	if got != 0x5A {
		t.Errorf("value = 0x%02X, want 0x5A", got)
	}
	if start != 0 {
		t.Errorf("start = %d, want 0", start)
	}
	if end == 0 {
		t.Error("end = 0, want > 0")
	}

	for _, m := range sink.Markers {
		if m.Kind == MarkerErrorDot {
			t.Errorf("unexpected ErrorDot marker at sample %d for a well-formed byte", m.Sample)
		}
	}
}

func TestReadRawByteInvertedRoundTrip(t *testing.T) {
	cfg := config.Config{BitRate: 9600, BitsPerTransfer: 8, ParityAndStop: config.NoneOne, Inverted: true, Mode: config.RTUClient}
	wb := NewWaveformBuilder(cfg, testSamplesPerBit)
	wb.PushByte(0xA3)
	plan, err := wb.planFor()
	if err != nil {
		t.Fatalf("planFor: %v", err)
	}
	sink := &SliceSink{}
	bd := newByteDecoder(wb.Reader(), sink, 0, plan, cfg)

	got, _, _ := bd.readRawByte()
	if got != 0xA3 {
		t.Errorf("value = 0x%02X, want 0xA3", got)
	}
}

func TestReadRawByteTwoStopBits(t *testing.T) {
	cfg := config.Config{BitRate: 9600, BitsPerTransfer: 8, ParityAndStop: config.NoneTwo, Mode: config.RTUClient}
	wb := NewWaveformBuilder(cfg, testSamplesPerBit)
	wb.PushByte(0x7E)
	plan, err := wb.planFor()
	if err != nil {
		t.Fatalf("planFor: %v", err)
	}
	sink := &SliceSink{}
	bd := newByteDecoder(wb.Reader(), sink, 0, plan, cfg)

	got, _, _ := bd.readRawByte()
	if got != 0x7E {
		t.Errorf("value = 0x%02X, want 0x7E", got)
	}
	for _, m := range sink.Markers {
		if m.Kind == MarkerErrorDot {
			t.Errorf("unexpected ErrorDot marker for a well-formed two-stop-bit byte")
		}
	}
}

func TestReadByteASCIIDelimiterPassthrough(t *testing.T) {
	cfg := config.Config{BitRate: 9600, BitsPerTransfer: 8, ParityAndStop: config.NoneOne, Mode: config.ASCIIClient}
	wb := NewWaveformBuilder(cfg, testSamplesPerBit)
	wb.PushBytes([]byte{':', '4', '1'})
	plan, err := wb.planFor()
	if err != nil {
		t.Fatalf("planFor: %v", err)
	}
	sink := &SliceSink{}
	bd := newByteDecoder(wb.Reader(), sink, 0, plan, cfg)

	v, _, _, isDelim := bd.ReadByte()
	if !isDelim || v != ':' {
		t.Fatalf("first ReadByte = (0x%X, delim=%v), want (':', true)", v, isDelim)
	}
	v2, _, _, isDelim2 := bd.ReadByte()
	if isDelim2 || v2 != 0x41 {
		t.Fatalf("second ReadByte = (0x%X, delim=%v), want (0x41, false)", v2, isDelim2)
	}
}

package bitstream

import (
	"io"
	"sync"
	"testing"

	"github.com/saleae/modbus-analyzer/pkg/config"
	"github.com/saleae/modbus-analyzer/pkg/decoder"
)

// newTestReader builds a Reader without touching a real serial port, by
// driving its read loop from an in-memory pipe instead of serial.Open.
func newTestReader(cfg config.Config) (*Reader, *io.PipeWriter) {
	pr, pw := io.Pipe()
	samplesPerBit := int(cfg.SampleRate / cfg.BitRate)
	if samplesPerBit < 1 {
		samplesPerBit = 1
	}
	r := &Reader{cfg: cfg, samplesPerBit: samplesPerBit, port: pr}
	r.cond = sync.NewCond(&r.mu)
	r.appendIdle(samplesPerBit)
	go r.readLoop(pr)
	return r, pw
}

func TestReaderReachesStartBitOfLiveByte(t *testing.T) {
	cfg := config.Config{
		BitRate:         9600,
		SampleRate:      9600 * 8,
		BitsPerTransfer: 8,
		ParityAndStop:   config.NoneOne,
		Mode:            config.RTUClient,
	}
	r, pw := newTestReader(cfg)
	go func() {
		pw.Write([]byte{0x41})
		pw.Close()
	}()

	// Walk past the primed idle period, then the falling start-bit edge.
	r.AdvanceToNextEdge()
	if r.BitState() != decoder.Low {
		t.Fatalf("BitState after first edge = %v, want Low (start bit)", r.BitState())
	}
}

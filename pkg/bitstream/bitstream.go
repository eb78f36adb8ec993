// Package bitstream implements the Bit-Stream Reader (§6.1) over a live
// go.bug.st/serial port. Each UART byte the port delivers is expanded into
// its framed electrical waveform (start bit, data bits, optional parity,
// stop bit(s)) against a virtual sample clock derived from the configured
// sample rate; Advance/BitState/AdvanceToNextEdge walk that growing bit
// queue, blocking the caller's goroutine when it runs dry until the
// background reader goroutine appends more.
//
// This is the one collaborator in the whole decoder that cannot be
// bit-exact with a real logic-analyzer capture: a UART has already
// extracted whole bytes for us, so there is no true sample clock left to
// recover, only a simulated one. The decoder's own tests instead drive
// the byte and message layers against decoder.FixtureBitReader, which
// deals in exact, reproducible sample indices — see that type's doc
// comment for why live capture can't be tested the same way.
package bitstream

import (
	"fmt"
	"io"
	"math/bits"
	"sync"

	"go.bug.st/serial"

	"github.com/saleae/modbus-analyzer/pkg/config"
	"github.com/saleae/modbus-analyzer/pkg/decoder"
)

// Reader implements decoder.BitReader over a live serial.Port.
type Reader struct {
	cfg           config.Config
	samplesPerBit int
	port          io.ReadCloser

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []decoder.BitState
	idx     int
	closed  bool
	readErr error
}

// Open opens the named serial port at the configured baud/parity/stop
// bits and starts the background goroutine that turns received bytes
// into a bit queue. Close must be called to release the port.
func Open(cfg config.Config) (*Reader, error) {
	mode := &serial.Mode{
		BaudRate: int(cfg.BitRate),
		DataBits: cfg.BitsPerTransfer,
	}
	switch cfg.ParityAndStop {
	case config.EvenOne:
		mode.Parity = serial.EvenParity
		mode.StopBits = serial.OneStopBit
	case config.OddOne:
		mode.Parity = serial.OddParity
		mode.StopBits = serial.OneStopBit
	case config.NoneTwo:
		mode.Parity = serial.NoParity
		mode.StopBits = serial.TwoStopBits
	default:
		mode.Parity = serial.NoParity
		mode.StopBits = serial.OneStopBit
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("bitstream: open %s: %w", cfg.Port, err)
	}

	samplesPerBit := int(cfg.SampleRate / cfg.BitRate)
	if samplesPerBit < 1 {
		samplesPerBit = 1
	}

	r := &Reader{cfg: cfg, samplesPerBit: samplesPerBit, port: port}
	r.cond = sync.NewCond(&r.mu)

	// Prime the queue with one idle bit-period so the first
	// AdvanceToNextEdge has mark-state samples to walk past before the
	// first real falling edge arrives.
	r.appendIdle(samplesPerBit)

	go r.readLoop(port)
	return r, nil
}

// Close releases the underlying serial port, which unblocks the
// background reader goroutine's pending Read with an error.
func (r *Reader) Close() error {
	return r.port.Close()
}

func (r *Reader) readLoop(port io.ReadCloser) {
	defer port.Close()
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			r.mu.Lock()
			for _, b := range buf[:n] {
				r.appendByteLocked(b)
			}
			r.cond.Broadcast()
			r.mu.Unlock()
		}
		if err != nil {
			r.mu.Lock()
			r.readErr = err
			r.closed = true
			r.cond.Broadcast()
			r.mu.Unlock()
			return
		}
	}
}

func (r *Reader) appendIdle(n int) {
	idle := decoder.High
	if r.cfg.Inverted {
		idle = decoder.Low
	}
	r.mu.Lock()
	for i := 0; i < n; i++ {
		r.queue = append(r.queue, idle)
	}
	r.mu.Unlock()
}

// appendByteLocked expands one received byte into its framed waveform and
// appends it to the queue. Caller must hold r.mu.
func (r *Reader) appendByteLocked(value byte) {
	numBits := r.cfg.BitsPerTransfer
	mask := uint64(1)<<uint(numBits) - 1
	data0 := uint64(value) & mask
	if r.cfg.Inverted {
		data0 = (^data0) & mask
	}

	elecIdle, elecStart := decoder.High, decoder.Low
	if r.cfg.Inverted {
		elecIdle, elecStart = decoder.Low, decoder.High
	}

	rep := func(s decoder.BitState, n int) {
		for i := 0; i < n; i++ {
			r.queue = append(r.queue, s)
		}
	}

	rep(elecStart, r.samplesPerBit)
	for i := 0; i < numBits; i++ {
		idx := i
		if r.cfg.ShiftOrder == config.MSBFirst {
			idx = numBits - 1 - i
		}
		s := decoder.Low
		if data0&(1<<uint(idx)) != 0 {
			s = decoder.High
		}
		rep(s, r.samplesPerBit)
	}

	switch r.cfg.ParityAndStop {
	case config.EvenOne, config.OddOne:
		isEven := bits.OnesCount64(data0)%2 == 0
		wantStart := isEven
		if r.cfg.ParityAndStop == config.OddOne {
			wantStart = !isEven
		}
		if wantStart {
			rep(elecStart, r.samplesPerBit)
		} else {
			rep(elecIdle, r.samplesPerBit)
		}
		rep(elecIdle, r.samplesPerBit)
	case config.NoneTwo:
		rep(elecIdle, r.samplesPerBit)
		rep(elecIdle, r.samplesPerBit)
	default:
		rep(elecIdle, r.samplesPerBit)
	}

	// Idle gap between characters so the next falling edge is a real
	// edge rather than an immediate continuation of the stop bit.
	rep(elecIdle, r.samplesPerBit/4+1)
}

// waitForSample blocks until sample index i is available in the queue, or
// the port has closed.
func (r *Reader) waitForSample(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i >= len(r.queue) && !r.closed {
		r.cond.Wait()
	}
}

func (r *Reader) AdvanceToNextEdge() {
	r.waitForSample(r.idx)
	r.mu.Lock()
	cur := r.stateAtLocked(r.idx)
	r.mu.Unlock()
	for {
		r.waitForSample(r.idx)
		r.mu.Lock()
		done := r.idx >= len(r.queue) && r.closed
		same := !done && r.stateAtLocked(r.idx) == cur
		r.mu.Unlock()
		if done || !same {
			return
		}
		r.idx++
	}
}

func (r *Reader) Advance(delta int64) {
	r.idx += int(delta)
	r.waitForSample(r.idx)
}

func (r *Reader) BitState() decoder.BitState {
	r.waitForSample(r.idx)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateAtLocked(r.idx)
}

// stateAtLocked returns the queued state at i, or mark-idle past the end
// of a closed stream. Caller must hold r.mu.
func (r *Reader) stateAtLocked(i int) decoder.BitState {
	if i < 0 || i >= len(r.queue) {
		if r.cfg.Inverted {
			return decoder.Low
		}
		return decoder.High
	}
	return r.queue[i]
}

func (r *Reader) SampleNumber() uint64 { return uint64(r.idx) }

// TrackMinimumPulseWidth is a no-op here: this reader has no pulse-width
// signal finer than one synthesized bit period to report.
func (r *Reader) TrackMinimumPulseWidth() {}

// Err returns the error that stopped the background reader goroutine, if
// any (typically io.EOF or a port-closed error).
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readErr
}

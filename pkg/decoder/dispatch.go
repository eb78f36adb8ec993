package decoder

import (
	"context"
	"fmt"

	"github.com/saleae/modbus-analyzer/pkg/config"
	"github.com/saleae/modbus-analyzer/pkg/planner"
)

// Worker owns a BitReader and a FrameSink for the lifetime of one decoding
// run and drives the message dispatcher loop of §4.5 until its context is
// cancelled. It is the library counterpart of
// the goroutine cmd/mbpcap runs against a live serial port.
type Worker struct {
	br      BitReader
	sink    FrameSink
	cfg     config.Config
	plan    planner.Plan
	channel int
}

// NewWorker validates cfg and precomputes its Sample-Offset Plan. This is
// the only place decoding fails with an error: once running, malformed
// input surfaces as flagged frames, never as a returned error.
func NewWorker(br BitReader, sink FrameSink, channel int, cfg config.Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	plan, err := planner.New(cfg.BitRate, cfg.SampleRate, cfg.BitsPerTransfer, cfg.ParityAndStop)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	return &Worker{br: br, sink: sink, cfg: cfg, plan: plan, channel: channel}, nil
}

// Run decodes messages until ctx is cancelled. It never returns an error,
// and cancellation is the only way it returns: it does not detect an
// exhausted BitReader, so past the end of a FixtureBitReader it keeps
// reading idle-line bytes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	bd := newByteDecoder(w.br, w.sink, w.channel, w.plan, w.cfg)
	bd.br.TrackMinimumPulseWidth()

	if bd.br.BitState() == bd.lowState {
		bd.br.AdvanceToNextEdge()
	}

	ascii := w.cfg.Mode.IsASCII()
	processingResponse := w.cfg.AssumeStartsWithResponse

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ascii {
			for {
				v, _, _, isDelimiter := bd.ReadByte()
				if isDelimiter && v == ':' {
					break
				}
			}
		}

		addr, addrStart, _, _ := bd.ReadByte()
		frameStart := addrStart
		fn, _, fnEnd, _ := bd.ReadByte()

		mc := newMessageCtx(bd, w.sink, w.channel, ascii)
		mc.lastEnd = fnEnd
		if ascii {
			mc.lrc = mc.lrc.Update(byte(addr)).Update(byte(fn))
		} else {
			mc.crc = mc.crc.Update(byte(addr)).Update(byte(fn))
		}

		if w.classifyRequest(processingResponse) {
			dispatchRequest(mc, byte(addr), byte(fn), frameStart)
		} else {
			dispatchResponse(mc, byte(addr), byte(fn), frameStart)
		}

		if ascii {
			bd.ReadByte() // CR
			bd.ReadByte() // LF
		}

		if w.cfg.Mode.IsBoth() {
			processingResponse = !processingResponse
		}
	}
}

// classifyRequest reports whether the message about to be parsed is a
// client request, per §4.5's role-classification rule.
func (w *Worker) classifyRequest(processingResponse bool) bool {
	switch {
	case w.cfg.Mode.IsClientOnly():
		return true
	case w.cfg.Mode.IsBoth():
		return !processingResponse
	default: // server-only mode
		return false
	}
}

func dispatchRequest(mc *messageCtx, addr, fn byte, frameStart uint64) {
	switch fn {
	case FnReadCoils, FnReadDiscreteInputs, FnReadHoldingRegisters, FnReadInputRegisters,
		FnWriteSingleCoil, FnWriteSingleRegister, FnDiagnostic:
		shapeA(mc, addr, fn, frameStart, KindRequest)
	case FnReadFIFOQueue:
		shapeAFIFO(mc, addr, fn, frameStart)
	case FnReadExceptionStatus, FnGetComEventCounter, FnGetComEventLog, FnReportServerID:
		shapeB(mc, addr, fn, frameStart, KindRequest)
	case FnWriteMultipleCoils:
		requestWriteMultipleCoils(mc, addr, fn, frameStart)
	case FnWriteMultipleRegisters:
		requestWriteMultipleRegisters(mc, addr, fn, frameStart)
	case FnReadFileRecord:
		requestReadFileRecord(mc, addr, fn, frameStart)
	case FnWriteFileRecord:
		fileRecordWrite(mc, addr, fn, frameStart, KindRequest)
	case FnMaskWriteRegister:
		maskWriteRegister(mc, addr, fn, frameStart, KindRequest)
	case FnReadWriteMultipleRegisters:
		requestReadWriteMultipleRegisters(mc, addr, fn, frameStart)
	default:
		mc.sink.AddFrame(Frame{StartSample: frameStart, EndSample: mc.lastEnd, Kind: KindRequest})
		mc.sink.Commit()
	}
}

func dispatchResponse(mc *messageCtx, addr, fn byte, frameStart uint64) {
	if fn&exceptionBit != 0 {
		shapeException(mc, addr, fn, frameStart)
		return
	}

	switch fn {
	case FnReadCoils, FnReadDiscreteInputs, FnReportServerID:
		shapeBytesResponse(mc, addr, fn, frameStart)
	case FnReadHoldingRegisters, FnReadInputRegisters, FnReadWriteMultipleRegisters:
		shapeWordsResponse(mc, addr, fn, frameStart)
	case FnWriteSingleCoil, FnWriteSingleRegister, FnDiagnostic, FnGetComEventCounter,
		FnWriteMultipleCoils, FnWriteMultipleRegisters:
		shapeA(mc, addr, fn, frameStart, KindResponse)
	case FnReadExceptionStatus:
		shapeExceptionStatusResponse(mc, addr, fn, frameStart)
	case FnGetComEventLog:
		responseGetComEventLog(mc, addr, fn, frameStart)
	case FnReadFileRecord:
		responseReadFileRecord(mc, addr, fn, frameStart)
	case FnWriteFileRecord:
		fileRecordWrite(mc, addr, fn, frameStart, KindResponse)
	case FnMaskWriteRegister:
		maskWriteRegister(mc, addr, fn, frameStart, KindResponse)
	case FnReadFIFOQueue:
		responseReadFIFOQueue(mc, addr, fn, frameStart)
	default:
		mc.sink.AddFrame(Frame{StartSample: frameStart, EndSample: mc.lastEnd, Kind: KindResponse})
		mc.sink.Commit()
	}
}

// Package config holds the immutable run configuration for the Modbus
// decoder: bit timing, framing, and operating mode, plus YAML persistence
// compatible with the legacy settings-archive tag.
package config

import "fmt"

// ShiftOrder controls which end of the sampled bit sequence is the most
// significant bit.
type ShiftOrder int

const (
	LSBFirst ShiftOrder = iota
	MSBFirst
)

func (s ShiftOrder) String() string {
	if s == MSBFirst {
		return "msb_first"
	}
	return "lsb_first"
}

// ParityAndStop names the four UART framing combinations Modbus serial
// actually uses.
type ParityAndStop int

const (
	EvenOne ParityAndStop = iota
	OddOne
	NoneOne
	NoneTwo
)

func (p ParityAndStop) String() string {
	switch p {
	case EvenOne:
		return "even_one_stop"
	case OddOne:
		return "odd_one_stop"
	case NoneTwo:
		return "none_two_stop"
	default:
		return "none_one_stop"
	}
}

// Mode names the six client/server × RTU/ASCII combinations the analyzer
// supports, plus the "both" directions which flips request/response
// classification on every other message.
type Mode int

const (
	RTUClient Mode = iota
	RTUServer
	RTUBoth
	ASCIIClient
	ASCIIServer
	ASCIIBoth
)

func (m Mode) String() string {
	switch m {
	case RTUClient:
		return "rtu_client"
	case RTUServer:
		return "rtu_server"
	case RTUBoth:
		return "rtu_both"
	case ASCIIClient:
		return "ascii_client"
	case ASCIIServer:
		return "ascii_server"
	case ASCIIBoth:
		return "ascii_both"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// IsASCII reports whether the mode decodes the ASCII wire encoding rather
// than RTU binary.
func (m Mode) IsASCII() bool {
	return m == ASCIIClient || m == ASCIIServer || m == ASCIIBoth
}

// IsBoth reports whether the mode alternates request/response
// classification instead of fixing it for the run.
func (m Mode) IsBoth() bool {
	return m == RTUBoth || m == ASCIIBoth
}

// IsClientOnly reports whether every message on the line is a request.
func (m Mode) IsClientOnly() bool {
	return m == RTUClient || m == ASCIIClient
}

// Config is the complete, immutable description of one decoding run. A
// Config is never mutated after NewWorker/Load hands it out.
type Config struct {
	// Port and InputChannel are ambient: needed to actually acquire
	// samples, not part of the decoding semantics themselves.
	Port         string
	InputChannel int

	BitRate         uint32
	SampleRate      uint32
	BitsPerTransfer int
	ShiftOrder      ShiftOrder
	ParityAndStop   ParityAndStop
	Inverted        bool
	Mode            Mode

	AssumeStartsWithResponse bool
}

// Validate checks the fatal preconditions the decoder can't recover from
// at runtime: a zero bit rate, a sample rate too low to resolve bit edges
// (the Nyquist-ish 4x-oversampling minimum the original analyzer
// enforced), a non-positive character width, and a non-Modbus mode.
func (c Config) Validate() error {
	if c.BitRate == 0 {
		return fmt.Errorf("config: bit rate must be positive")
	}
	if uint64(c.BitRate)*4 > uint64(c.SampleRate) {
		return fmt.Errorf("config: sample rate %d is less than 4x the bit rate %d", c.SampleRate, c.BitRate)
	}
	if c.BitsPerTransfer < 1 {
		return fmt.Errorf("config: bits per transfer must be positive, got %d", c.BitsPerTransfer)
	}
	switch c.Mode {
	case RTUClient, RTUServer, RTUBoth, ASCIIClient, ASCIIServer, ASCIIBoth:
	default:
		return fmt.Errorf("config: %v is not a Modbus mode", c.Mode)
	}
	return nil
}

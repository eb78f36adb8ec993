package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape, §6.5. It accepts either the current type
// tag or the legacy one the original analyzer's settings archive used;
// fields absent from a legacy document are tolerated and defaulted by Load.
type document struct {
	Type string `yaml:"type"`

	Port         string `yaml:"port,omitempty"`
	InputChannel int    `yaml:"input_channel"`

	BitRate         uint32 `yaml:"bit_rate"`
	SampleRate      uint32 `yaml:"sample_rate,omitempty"`
	BitsPerTransfer int    `yaml:"bits_per_transfer,omitempty"`
	ShiftOrder      string `yaml:"shift_order,omitempty"`
	ParityAndStop   string `yaml:"parity_and_stop"`
	Inverted        bool   `yaml:"inverted"`
	Mode            string `yaml:"mode"`

	AssumeStartsWithResponse bool `yaml:"assume_starts_with_response"`
}

const (
	typeTagCurrent = "modbus_analyzer_settings"
	typeTagLegacy  = "saleae_async_modbus_analyzer"
)

var parityAndStopNames = map[string]ParityAndStop{
	"even_one_stop": EvenOne,
	"odd_one_stop":  OddOne,
	"none_one_stop": NoneOne,
	"none_two_stop": NoneTwo,
}

var modeNames = map[string]Mode{
	"rtu_client":   RTUClient,
	"rtu_server":   RTUServer,
	"rtu_both":     RTUBoth,
	"ascii_client": ASCIIClient,
	"ascii_server": ASCIIServer,
	"ascii_both":   ASCIIBoth,
}

var shiftOrderNames = map[string]ShiftOrder{
	"lsb_first": LSBFirst,
	"msb_first": MSBFirst,
}

// Load reads a persisted Config. Documents tagged with the legacy key
// saleae_async_modbus_analyzer tolerate missing sample_rate,
// bits_per_transfer and shift_order fields the same way the legacy loader
// did: by defaulting them to values that keep the run valid.
func Load(r io.Reader) (Config, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if doc.Type != typeTagCurrent && doc.Type != typeTagLegacy {
		return Config{}, fmt.Errorf("config: unrecognized settings type %q", doc.Type)
	}

	mode, ok := modeNames[doc.Mode]
	if !ok {
		return Config{}, fmt.Errorf("config: unrecognized mode %q", doc.Mode)
	}
	parityAndStop, ok := parityAndStopNames[doc.ParityAndStop]
	if !ok {
		return Config{}, fmt.Errorf("config: unrecognized parity_and_stop %q", doc.ParityAndStop)
	}

	cfg := Config{
		Port:                     doc.Port,
		InputChannel:             doc.InputChannel,
		BitRate:                  doc.BitRate,
		SampleRate:               doc.SampleRate,
		BitsPerTransfer:          doc.BitsPerTransfer,
		ParityAndStop:            parityAndStop,
		Inverted:                 doc.Inverted,
		Mode:                     mode,
		AssumeStartsWithResponse: doc.AssumeStartsWithResponse,
	}
	if order, ok := shiftOrderNames[doc.ShiftOrder]; ok {
		cfg.ShiftOrder = order
	} else {
		cfg.ShiftOrder = LSBFirst
	}
	if cfg.BitsPerTransfer == 0 {
		cfg.BitsPerTransfer = 8
	}
	if cfg.SampleRate == 0 {
		// A legacy archive never stored the sample rate, since the
		// original analyzer always resampled at whatever rate the
		// capture device ran at. Default to comfortably above the
		// 4x-oversampling minimum.
		cfg.SampleRate = cfg.BitRate * 16
	}
	return cfg, nil
}

// Save writes cfg in the current document shape.
func Save(w io.Writer, cfg Config) error {
	doc := document{
		Type:                     typeTagCurrent,
		Port:                     cfg.Port,
		InputChannel:             cfg.InputChannel,
		BitRate:                  cfg.BitRate,
		SampleRate:               cfg.SampleRate,
		BitsPerTransfer:          cfg.BitsPerTransfer,
		ShiftOrder:               cfg.ShiftOrder.String(),
		ParityAndStop:            cfg.ParityAndStop.String(),
		Inverted:                 cfg.Inverted,
		Mode:                     cfg.Mode.String(),
		AssumeStartsWithResponse: cfg.AssumeStartsWithResponse,
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}

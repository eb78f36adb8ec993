// Command mbpcap captures a live Modbus serial line and writes it as a
// libpcap trace: bytes come off go.bug.st/serial through pkg/bitstream's
// virtual sample clock, pkg/decoder classifies them into frames, and
// pkg/pcap serializes each frame as an RTAC-Serial-style packet.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/saleae/modbus-analyzer/pkg/bitstream"
	"github.com/saleae/modbus-analyzer/pkg/config"
	"github.com/saleae/modbus-analyzer/pkg/decoder"
	"github.com/saleae/modbus-analyzer/pkg/pcap"
)

var version = "dev"

// CLI is the flag/argument surface for one capture run.
type CLI struct {
	Version kong.VersionFlag `help:"Show version and exit."`

	Port string `arg:"" help:"Serial port device path (e.g. /dev/ttyUSB0, COM3)."`

	Output string `short:"o" required:"" help:"Output PCAP file path."`

	BitRate         uint32 `default:"9600" help:"Line bit rate."`
	SampleRate      uint32 `help:"Virtual sample rate for the bit-stream reader; defaults to 16x the bit rate."`
	DataBits        int    `default:"8" help:"Data bits per character (5-8)."`
	Parity          string `default:"none" enum:"none,odd,even" help:"Parity: none, odd, or even."`
	StopBits        int    `default:"1" enum:"1,2" help:"Stop bits: 1 or 2."`
	Inverted        bool   `help:"Treat the line as electrically inverted."`
	ShiftOrder      string `default:"lsb" enum:"lsb,msb" help:"Bit shift order: lsb or msb first."`
	Mode            string `default:"rtu_client" enum:"rtu_client,rtu_server,rtu_both,ascii_client,ascii_server,ascii_both" help:"Protocol mode."`
	AssumeResponse  bool   `help:"Assume the first message on the line is a response, not a request."`
	SettingsFile    string `help:"Load decoder settings from a YAML file (overrides the flags above)."`
	SaveSettingsTo  string `help:"Persist the effective decoder settings to a YAML file and exit."`
	Pipe            bool   `help:"Create a named pipe (FIFO) at -o for live Wireshark streaming (Unix only)."`
	Verbose         bool   `short:"v" help:"Log a running frame count once a second."`
}

func (c CLI) toConfig() (config.Config, error) {
	cfg := config.Config{
		Port:                     c.Port,
		BitRate:                  c.BitRate,
		SampleRate:               c.SampleRate,
		BitsPerTransfer:          c.DataBits,
		Inverted:                 c.Inverted,
		AssumeStartsWithResponse: c.AssumeResponse,
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = cfg.BitRate * 16
	}
	if c.ShiftOrder == "msb" {
		cfg.ShiftOrder = config.MSBFirst
	} else {
		cfg.ShiftOrder = config.LSBFirst
	}

	switch {
	case c.Parity == "even" && c.StopBits == 1:
		cfg.ParityAndStop = config.EvenOne
	case c.Parity == "odd" && c.StopBits == 1:
		cfg.ParityAndStop = config.OddOne
	case c.Parity == "none" && c.StopBits == 2:
		cfg.ParityAndStop = config.NoneTwo
	case c.Parity == "none" && c.StopBits == 1:
		cfg.ParityAndStop = config.NoneOne
	default:
		return config.Config{}, fmt.Errorf("unsupported parity/stop-bits combination: %s/%d", c.Parity, c.StopBits)
	}

	switch c.Mode {
	case "rtu_client":
		cfg.Mode = config.RTUClient
	case "rtu_server":
		cfg.Mode = config.RTUServer
	case "rtu_both":
		cfg.Mode = config.RTUBoth
	case "ascii_client":
		cfg.Mode = config.ASCIIClient
	case "ascii_server":
		cfg.Mode = config.ASCIIServer
	case "ascii_both":
		cfg.Mode = config.ASCIIBoth
	}
	return cfg, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.Vars{"version": version})

	cfg, err := cli.toConfig()
	kctx.FatalIfErrorf(err)

	if cli.SettingsFile != "" {
		f, err := os.Open(cli.SettingsFile)
		kctx.FatalIfErrorf(err)
		loaded, err := config.Load(f)
		f.Close()
		kctx.FatalIfErrorf(err)
		loaded.Port = cfg.Port
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		kctx.FatalIfErrorf(err)
	}

	if cli.SaveSettingsTo != "" {
		f, err := os.Create(cli.SaveSettingsTo)
		kctx.FatalIfErrorf(err)
		err = config.Save(f, cfg)
		f.Close()
		kctx.FatalIfErrorf(err)
		return
	}

	enableTerminalStatus()

	var outFile *os.File
	if cli.Pipe {
		outFile, err = createPipe(cli.Output)
	} else {
		outFile, err = os.Create(cli.Output)
	}
	if err != nil {
		slog.Error("open output", "error", err)
		os.Exit(1)
	}
	defer outFile.Close()
	if cli.Pipe {
		defer removePipe(cli.Output)
	}

	frameWriter, err := pcap.NewFrameWriter(outFile, time.Now(), cfg.SampleRate)
	if err != nil {
		slog.Error("write pcap header", "error", err)
		os.Exit(1)
	}

	reader, err := bitstream.Open(cfg)
	if err != nil {
		slog.Error("open serial port", "port", cfg.Port, "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	sink := &countingSink{FrameSink: frameWriter}

	worker, err := decoder.NewWorker(reader, sink, 0, cfg)
	if err != nil {
		slog.Error("configure decoder", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cli.Verbose {
		go logStatus(ctx, sink)
	}

	slog.Info("capturing", "port", cfg.Port, "bit_rate", cfg.BitRate, "mode", cfg.Mode.String(), "output", cli.Output)
	worker.Run(ctx)
	frameWriter.Commit()
	slog.Info("capture stopped", "frames", sink.count.Load())
}

// countingSink wraps a FrameSink to track how many frames have been
// emitted, for the verbose status ticker.
type countingSink struct {
	decoder.FrameSink
	count atomic.Int64
}

func (s *countingSink) AddFrame(f decoder.Frame) {
	s.count.Add(1)
	s.FrameSink.AddFrame(f)
}

func logStatus(ctx context.Context, sink *countingSink) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slog.Info("status", "frames", sink.count.Load())
		}
	}
}

// Command haossim runs the simulated audio runtime end to end: parse
// flags, open an input stream, wire a small module table onto one core,
// run the scheduler to completion, and flush the output sink.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/haos-sim/haos/internal/bitripper"
	"github.com/haos-sim/haos/internal/config"
	"github.com/haos-sim/haos/internal/core"
	"github.com/haos-sim/haos/internal/feeder"
	"github.com/haos-sim/haos/internal/haoslog"
	"github.com/haos-sim/haos/internal/hostcomm"
	"github.com/haos-sim/haos/internal/modules"
	"github.com/haos-sim/haos/internal/odt"
	"github.com/haos-sim/haos/internal/sink"
	"github.com/haos-sim/haos/internal/wavefile"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		haoslog.Fatalf("%v", err)
	}
	if cfg.Help {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			haoslog.Fatalf("protocol violation: %v", r)
		}
	}()

	if err := run(cfg); err != nil {
		haoslog.Fatalf("%v", err)
	}
}

func run(cfg config.Config) error {
	waveIn, f, err := openFeeder(cfg)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	channels := 2
	sampleRate := int32(48000)
	if waveIn != nil {
		channels = waveIn.Channels
		sampleRate = int32(waveIn.SampleRate)
	}
	if cfg.OFs != 0 {
		sampleRate = int32(cfg.OFs)
	}

	var refillers [2]bitripper.Refiller
	refillers[0] = f

	mif1 := &odt.MIF{}
	mif2 := &odt.MIF{}
	sys, err := core.AddModules([]*core.CoreSpec{{
		Modules: []odt.Entry{
			{MIF: mif1, ModuleID: 0},
			{MIF: mif2, ModuleID: 1},
			{MIF: nil},
		},
		Refillers: refillers,
	}}, cfg.Fg2Bg)
	if err != nil {
		return err
	}
	sys.Input.Compressed = cfg.App == config.AppMP3
	sys.Input.Channels = channels
	sys.Input.SampleRate = sampleRate
	sys.Output.Channels = channels
	sys.Output.SampleRate = sampleRate
	sys.Output.BitsPerSample = cfg.OSample
	if waveIn != nil {
		sys.Input.BitsPerSample = waveIn.BitsPerSample
		sys.Input.SamplesPerChan = waveIn.SamplesPerChan
	}

	if cfg.App == config.AppMP3 {
		dec := modules.NewMP3FrontEnd(sys, mif1, nil, f)
		mif1.MCT = dec.Hooks()
	} else {
		dec := modules.NewPCMDecoder(sys, mif1, channels, sampleRate, f)
		mif1.MCT = dec.Hooks()
	}
	am := modules.NewAudioManager(sys, mif2)
	mif2.MCT = am.Hooks()

	out, err := openSink(cfg, channels, sampleRate)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	sys.Sink = out

	var replay func(core *core.Core)
	if cfg.CfgFile != "" {
		r, err := hostcomm.LoadConfigFile(cfg.CfgFile)
		if err != nil {
			return fmt.Errorf("load host-comm config: %w", err)
		}
		replay = func(c *core.Core) { r.Apply(c.Table) }
	}

	sys.Input.InputEOF = false

	ctx := context.Background()
	if err := sys.Run(ctx, replay); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if closer, ok := out.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}
	haoslog.Infof("done: %d frames processed", sys.GetFrameCounter())
	return nil
}

func openFeeder(cfg config.Config) (*wavefile.Reader, feeder.Feeder, error) {
	if cfg.Input == "live" {
		lf, err := feeder.NewLiveFeeder(48000, 2)
		if err != nil {
			return nil, nil, err
		}
		return nil, lf, nil
	}
	if cfg.App == config.AppMP3 {
		// Compressed input: raw bytes straight into the FIFO, the
		// front-end finds frame sync itself.
		src, err := os.Open(cfg.Input)
		if err != nil {
			return nil, nil, err
		}
		f := feeder.NewFileFeeder(src)
		f.Compressed = true
		return nil, f, nil
	}
	r, err := wavefile.OpenReader(cfg.Input)
	if err != nil {
		return nil, nil, err
	}
	return r, feeder.NewWavFileFeeder(r), nil
}

func openSink(cfg config.Config, channels int, sampleRate int32) (core.Sink, error) {
	w, err := wavefile.CreateWriter(cfg.Output, cfg.OSample, channels, int(sampleRate))
	if err != nil {
		return nil, err
	}
	outChannels := make([]int, channels)
	for i := range outChannels {
		outChannels[i] = i
	}
	ws := sink.NewWaveSink(w, outChannels)
	if !cfg.Monitor {
		return ws, nil
	}
	ms, err := sink.NewMonitorSink(ws, int(sampleRate), channels)
	if err != nil {
		haoslog.Errorf("monitor unavailable, continuing file-only: %v", err)
		return ws, nil
	}
	return ms, nil
}

// Package config parses the command line into a Config the simulator's
// wiring code consumes.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// App selects which front-end module set a run loads.
type App int

const (
	// AppPCM is the default PCM front-end (app 0).
	AppPCM App = iota
	// AppMP3 selects the MP3 front-end (app 1), also raising the default
	// fg2bg ratio to 72 unless --fg2bg overrides it.
	AppMP3
)

const (
	fg2bgPCMDefault = 16
	fg2bgMP3Default = 72
)

// Config holds every CLI-settable knob for a simulator run.
type Config struct {
	Help    bool
	Fg2Bg   int
	CfgFile string
	App     App
	Input   string
	Output  string
	OSample int // output bits per sample
	OFs     int // output sample rate
	Monitor bool
}

// Parse parses args (excluding the program name) into a Config.
// Unrecognized flags return a non-nil error; --help prints usage and
// returns a nil error with Help set, leaving the caller to exit 0.
func Parse(args []string) (Config, error) {
	fs := pflag.NewFlagSet("haossim", pflag.ContinueOnError)
	var c Config
	var app int
	var fg2bg int

	fs.BoolVar(&c.Help, "help", false, "print usage and exit")
	fs.IntVar(&fg2bg, "fg2bg", 0, "foreground bricks processed per background tick (default 16, or 72 with --app 1)")
	fs.StringVar(&c.CfgFile, "cfg", "", "host-comm replay config file")
	fs.IntVar(&app, "app", 0, "front-end: 0=PCM, 1=MP3")
	fs.StringVar(&c.Input, "input", "", "input WAV file, or \"live\" for microphone capture")
	fs.StringVar(&c.Output, "output", "", "output WAV file path")
	fs.IntVar(&c.OSample, "osample", 16, "output bits per sample")
	fs.IntVar(&c.OFs, "ofs", 0, "output sample rate (default: follows input, or 48000)")
	fs.BoolVar(&c.Monitor, "monitor", false, "also stream output to the live speaker")

	if err := fs.Parse(args); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if c.Help {
		fs.PrintDefaults()
		return c, nil
	}

	switch app {
	case 0:
		c.App = AppPCM
	case 1:
		c.App = AppMP3
	default:
		return c, fmt.Errorf("config: --app must be 0 or 1, got %d", app)
	}

	if fs.Changed("fg2bg") {
		c.Fg2Bg = fg2bg
	} else if c.App == AppMP3 {
		c.Fg2Bg = fg2bgMP3Default
	} else {
		c.Fg2Bg = fg2bgPCMDefault
	}

	if c.Input == "" {
		return c, fmt.Errorf("config: --input is required")
	}
	if c.Output == "" {
		return c, fmt.Errorf("config: --output is required")
	}
	if c.Fg2Bg <= 0 {
		return c, fmt.Errorf("config: --fg2bg must be positive, got %d", c.Fg2Bg)
	}
	if c.OFs < 0 {
		return c, fmt.Errorf("config: --ofs must not be negative, got %d", c.OFs)
	}
	return c, nil
}

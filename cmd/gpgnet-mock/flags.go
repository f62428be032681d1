package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/energizer-project/gpgnet-mock/internal/config"
)

const usageText = `Usage: gpgnet-mock [flags]

Impersonates the lobby server side of GPGNet for local game clients and
relays their MP traffic over loopback.

Flags:
`

// options holds the parsed command line. set records which flags were given
// explicitly so only those override the config file.
type options struct {
	configPath   string
	port         int
	verbose      bool
	trace        bool
	syntheticAck bool
	recordPath   string
	apiPort      int
	tickMS       int
	logDir       string
	writeConfig  string
	summary      bool
	version      bool

	set map[string]bool
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("gpgnet-mock", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "path to a JSON config file")
	fs.IntVar(&opts.port, "port", config.DefaultGPGNetPort, "GPGNet listen port")
	fs.BoolVar(&opts.verbose, "verbose", false, "log at debug level")
	fs.BoolVar(&opts.trace, "trace", false, "log at trace level, including hex dumps of control traffic")
	fs.BoolVar(&opts.syntheticAck, "synthetic-ack", false, "acknowledge resolved Data frames on the peer's behalf")
	fs.StringVar(&opts.recordPath, "record", "", "record MP headers to this file (.db/.sqlite for SQLite, otherwise TSV)")
	fs.IntVar(&opts.apiPort, "api-port", 0, "serve the status API on this port")
	fs.IntVar(&opts.tickMS, "tick", config.DefaultTickIntervalMS, "peer introduction tick in milliseconds")
	fs.StringVar(&opts.logDir, "log-dir", "", "also write JSON logs to this directory")
	fs.StringVar(&opts.writeConfig, "write-config", "", "write the effective config to this path and exit")
	fs.BoolVar(&opts.summary, "summary", true, "print a player table on exit")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// apply overlays explicitly given flags onto cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["port"] {
		cfg.GPGNet.Port = o.port
	}
	if o.set["tick"] {
		cfg.GPGNet.TickIntervalMS = o.tickMS
	}
	if o.set["synthetic-ack"] {
		cfg.Relay.SyntheticAck = o.syntheticAck
	}
	if o.set["record"] {
		cfg.Recording.Path = o.recordPath
	}
	if o.set["api-port"] {
		cfg.API.Enabled = o.apiPort > 0
		cfg.API.Port = o.apiPort
	}
	if o.set["log-dir"] {
		cfg.Logging.Directory = o.logDir
	}
	switch {
	case o.trace:
		cfg.Logging.Level = "trace"
	case o.verbose:
		cfg.Logging.Level = "debug"
	}
}

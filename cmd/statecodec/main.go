package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/config"
	"github.com/reoring/statecodec/internal/gen"
	"github.com/reoring/statecodec/internal/load"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "generate":
		generateCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "watch":
		watchCmd(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `statecodec generates encode and decode operations that thread a caller-owned state.

Usage:
  statecodec generate [-c statecodec.yaml] [-t A,B] [-o out.go] [--tag state] [dir...]
  statecodec inspect  [-t A,B] [--format yaml|json] [dir]
  statecodec watch    [generate flags] [dir...]

Types are selected by //statecodec: directives unless -t is given.`)
}

// options holds the flags shared by every subcommand.
type options struct {
	configPath string
	types      string
	output     string
	tag        string
	buildTags  string
	logLevel   string
	logFormat  string
	workers    int
	debounce   time.Duration
}

func (o *options) register(fs *flag.FlagSet, generating bool) {
	fs.StringVarP(&o.configPath, "config", "c", "", "configuration file (default: ./"+config.DefaultFile+" if present)")
	fs.StringVarP(&o.types, "type", "t", "", "comma-separated type names to generate")
	fs.StringVar(&o.tag, "tag", "", "struct tag key holding field options")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "", "log format: json or console")
	if generating {
		fs.StringVarP(&o.output, "output", "o", "", "generated file name inside each directory")
		fs.StringVar(&o.buildTags, "build-tags", "", "build constraint written to generated files")
		fs.IntVarP(&o.workers, "workers", "j", 0, "directories generated concurrently")
		fs.DurationVar(&o.debounce, "debounce", 0, "delay before regenerating after a change (watch)")
	}
}

// setup parses args, loads the configuration, applies flags that were set
// explicitly and installs the logger in every library package.
func setup(name string, args []string, generating bool, extra ...func(*flag.FlagSet)) (*config.Config, *zap.Logger) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var o options
	o.register(fs, generating)
	for _, fn := range extra {
		fn(fs)
	}
	_ = fs.Parse(args)

	cfg, err := config.LoadWithFallback(o.configPath)
	if err != nil {
		fatalf("%v", err)
	}
	if fs.Changed("type") {
		cfg.Types = config.SplitList(o.types)
	}
	if fs.Changed("tag") {
		cfg.Tag = o.tag
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if generating {
		if fs.Changed("output") {
			cfg.Output = o.output
		}
		if fs.Changed("build-tags") {
			cfg.BuildTags = o.buildTags
		}
		if fs.Changed("workers") {
			cfg.Workers = o.workers
		}
		if fs.Changed("debounce") {
			cfg.Watch.Debounce = o.debounce
		}
	}
	if dirs := fs.Args(); len(dirs) > 0 {
		cfg.Dirs = dirs
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fatalf("logger: %v", err)
	}
	load.SetLogger(log.Named("load"))
	bounds.SetLogger(log.Named("bounds"))
	gen.SetLogger(log.Named("gen"))
	return cfg, log
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if lc.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	"github.com/sessiontrace/trc"
)

type rootConfig struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	logLevel string
	uris     []string
	uriPath  string
	output   string

	logger       *zap.Logger
	log          *zap.SugaredLogger
	traceEnabled bool

	sources     []string
	ids         []string
	category    string
	user        string
	hasUser     bool
	query       string
	isActive    bool
	isFinished  bool
	minDuration time.Duration
	isSuccess   bool
	isErrored   bool

	filter trc.Filter
}

func (cfg *rootConfig) registerBaseFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'l', LongName: "log" /*      */, Value: ffval.NewEnum(&cfg.logLevel, "info", "i", "debug", "d", "trace", "t", "none", "n") /* */, Usage: "log level: i/info, d/debug, t/trace, n/none" /* */, Placeholder: "LEVEL"})
}

func (cfg *rootConfig) registerClientFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'u', LongName: "uri" /*      */, Value: ffval.NewUniqueList(&cfg.uris) /*                 */, Usage: "trace server URI (repeatable, required)" /* */, Placeholder: "URI"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "uri-path" /* */, Value: ffval.NewValue(&cfg.uriPath) /*                   */, Usage: "path that will be applied to every URI" /*  */, Placeholder: "PATH"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'o', LongName: "output" /*   */, Value: ffval.NewEnum(&cfg.output, "ndjson", "prettyjson") /* */, Usage: "output format: ndjson, prettyjson" /*       */, Placeholder: "FORMAT"})
}

func (cfg *rootConfig) registerFilterFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "source" /*   */, Value: ffval.NewUniqueList(&cfg.sources) /* */, NoDefault: true, Usage: "trace source (repeatable)"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'i', LongName: "id" /*       */, Value: ffval.NewUniqueList(&cfg.ids) /*     */, NoDefault: true, Usage: "trace ID (repeatable)"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'c', LongName: "category" /* */, Value: ffval.NewValue(&cfg.category) /*     */, NoDefault: true, Usage: "trace category"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "user" /*     */, Value: ffval.NewValue(&cfg.user) /*         */, NoDefault: true, Usage: "trace user, exact match"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "has-user" /* */, Value: ffval.NewValue(&cfg.hasUser) /*      */, NoDefault: true, Usage: "only traces with a non-empty user"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'q', LongName: "query" /*    */, Value: ffval.NewValue(&cfg.query) /*        */, NoDefault: true, Usage: "query expression", Placeholder: "REGEX"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'a', LongName: "active" /*   */, Value: ffval.NewValue(&cfg.isActive) /*     */, NoDefault: true, Usage: "only active traces"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'f', LongName: "finished" /* */, Value: ffval.NewValue(&cfg.isFinished) /*   */, NoDefault: true, Usage: "only finished traces"})
	fs.AddFlag(ff.FlagConfig{ShortName: 'd', LongName: "duration" /* */, Value: ffval.NewValue(&cfg.minDuration) /*  */, NoDefault: true, Usage: "only finished traces of at least this duration"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "success" /*  */, Value: ffval.NewValue(&cfg.isSuccess) /*    */, NoDefault: true, Usage: "only successful (non-errored) traces"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "errored" /*  */, Value: ffval.NewValue(&cfg.isErrored) /*    */, NoDefault: true, Usage: "only errored traces"})
}

// traceWriter mirrors trace events to the logger, if the trace level is
// enabled. Otherwise it discards them.
func (cfg *rootConfig) traceWriter() io.Writer {
	if !cfg.traceEnabled {
		return io.Discard
	}
	return &zapio.Writer{Log: cfg.logger.Named("trace"), Level: zapcore.DebugLevel}
}

func (cfg *rootConfig) newTrace(ctx context.Context, category string) (context.Context, trc.Trace) {
	return trc.New(ctx, "trc", category, trc.LogDecorator(cfg.traceWriter()))
}

// newLogger returns a console logger writing to dst at the given level. The
// trace level is the debug level, plus trace events.
func newLogger(dst io.Writer, level string) (logger *zap.Logger, trace bool, err error) {
	var lvl zapcore.Level
	switch level {
	case "n", "none":
		return zap.NewNop(), false, nil
	case "", "i", "info":
		lvl = zapcore.InfoLevel
	case "d", "debug":
		lvl = zapcore.DebugLevel
	case "t", "trace":
		lvl, trace = zapcore.DebugLevel, true
	default:
		return nil, false, fmt.Errorf("invalid log level %q", level)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(dst), lvl)

	return zap.New(core), trace, nil
}

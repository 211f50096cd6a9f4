// trc is a CLI tool for running and querying trc servers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/sessiontrace/trc"
)

func main() {
	err := exec(context.Background(), os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func exec(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) (err error) {
	cfg := &rootConfig{stdin: stdin, stdout: stdout, stderr: stderr}

	var (
		rootFlags   = ff.NewFlagSet("trc")
		clientFlags = ff.NewFlagSet("client").SetParent(rootFlags)
		filterFlags = ff.NewFlagSet("filter").SetParent(clientFlags)
	)
	cfg.registerBaseFlags(rootFlags)
	cfg.registerClientFlags(clientFlags)
	cfg.registerFilterFlags(filterFlags)

	var (
		search = &searchConfig{rootConfig: cfg}
		stream = &streamConfig{rootConfig: cfg}
		serve  = &serveConfig{rootConfig: cfg}
	)

	searchFlags := ff.NewFlagSet("search").SetParent(filterFlags)
	search.register(searchFlags)

	streamFlags := ff.NewFlagSet("stream").SetParent(filterFlags)
	stream.register(streamFlags)

	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	serve.register(serveFlags)

	rootCommand := &ff.Command{
		Name:      "trc",
		ShortHelp: "run trc servers, and access their trace data",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			{
				Name:      "search",
				ShortHelp: "run a single search request",
				LongHelp:  "Fetch traces that match the provided query flags, from every server.",
				Flags:     searchFlags,
				Exec:      search.Exec,
			},
			{
				Name:      "stream",
				ShortHelp: "continuously stream trace data to the terminal",
				LongHelp:  "Stream traces, or trace events, that match the provided query flags.",
				Flags:     streamFlags,
				Exec:      stream.Exec,
			},
			{
				Name:      "serve",
				ShortHelp: "run a demo application with session-based trace users",
				LongHelp:  "Serve a small application whose requests are traced, with the trace user taken from the session.",
				Flags:     serveFlags,
				Exec:      serve.Exec,
			},
		},
	}

	// Help is shown for parse and validation errors, but not run errors.
	showHelp := true
	defer func() {
		errHelp := errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec)
		if showHelp || errHelp {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		}
		if errHelp {
			err = nil
		}
	}()

	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("TRC")); err != nil {
		return err
	}

	logger, traceEnabled, err := newLogger(stderr, cfg.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg.logger = logger
	cfg.log = logger.Sugar()
	cfg.traceEnabled = traceEnabled

	if cfg.uris, err = normalizeURIs(cfg.uris, cfg.uriPath); err != nil {
		return err
	}

	cfg.filter = cfg.buildFilter(filterFlags)

	showHelp = false

	return rootCommand.Run(ctx)
}

// normalizeURIs adds a default scheme to each URI, and overrides their paths
// if path is given. Empty URIs are dropped.
func normalizeURIs(uris []string, path string) ([]string, error) {
	res := make([]string, 0, len(uris))
	for _, uri := range uris {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}

		if !strings.HasPrefix(uri, "http") {
			uri = "http://" + uri
		}

		u, err := url.ParseRequestURI(uri)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid: %w", uri, err)
		}

		if path != "" {
			u.Path = path
		}

		res = append(res, u.String())
	}
	return res, nil
}

func (cfg *rootConfig) buildFilter(fs *ff.FlagSet) trc.Filter {
	var minDuration *time.Duration
	if f, ok := fs.GetFlag("duration"); ok && f.IsSet() {
		minDuration = &cfg.minDuration
	}

	return trc.Filter{
		Sources:     cfg.sources,
		IDs:         cfg.ids,
		Category:    cfg.category,
		User:        cfg.user,
		HasUser:     cfg.hasUser,
		IsActive:    cfg.isActive,
		IsFinished:  cfg.isFinished,
		MinDuration: minDuration,
		IsSuccess:   cfg.isSuccess,
		IsErrored:   cfg.isErrored,
		Query:       cfg.query,
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"go.uber.org/zap"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trchttp"
)

type streamConfig struct {
	*rootConfig

	streamEvents  bool
	sendBuf       int
	recvBuf       int
	statsInterval time.Duration
	retryInterval time.Duration
}

func (cfg *streamConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'e', LongName: "events" /*         */, Value: ffval.NewValue(&cfg.streamEvents) /*                         */, Usage: "stream individual events rather than complete traces", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "send-buffer" /*    */, Value: ffval.NewValueDefault(&cfg.sendBuf, 100) /*                  */, Usage: "remote send buffer size"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "recv-buffer" /*    */, Value: ffval.NewValueDefault(&cfg.recvBuf, 100) /*                  */, Usage: "local receive buffer size"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "stats-interval" /* */, Value: ffval.NewValueDefault(&cfg.statsInterval, 10*time.Second) /* */, Usage: "stats reporting interval"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "retry-interval" /* */, Value: ffval.NewValueDefault(&cfg.retryInterval, 1*time.Second) /*  */, Usage: "connection retry interval"})
}

func (cfg *streamConfig) Exec(ctx context.Context, args []string) error {
	ctx, tr := cfg.newTrace(ctx, "stream")
	defer tr.Finish()

	if len(cfg.uris) <= 0 {
		return fmt.Errorf("at least one URI is required")
	}

	// Every trace is published as it changes. Finished traces are complete,
	// so streaming traces means only finished traces, and streaming events
	// means everything.
	cfg.filter.IsActive = false
	cfg.filter.IsFinished = !cfg.streamEvents

	cfg.log.Infow("streaming", "events", cfg.streamEvents, "filter", cfg.filter.String())
	cfg.log.Debugw("buffers", "send", cfg.sendBuf, "recv", cfg.recvBuf)
	cfg.log.Debugw("intervals", "stats", cfg.statsInterval, "retry", cfg.retryInterval)

	traces := make(chan trc.Trace, cfg.recvBuf)

	var g run.Group

	for _, uri := range cfg.uris {
		ctx, cancel := context.WithCancel(ctx)
		uri := uri
		g.Add(func() error {
			cfg.runStream(ctx, uri, traces)
			return nil
		}, func(error) {
			cancel()
		})
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return cfg.writeTraces(ctx, traces)
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}

	return g.Run()
}

// runStream streams from a single server until the context is canceled,
// reconnecting after errors.
func (cfg *streamConfig) runStream(ctx context.Context, uri string, traces chan<- trc.Trace) {
	ctx, _ = trc.Prefix(ctx, "<%s>", uri)
	log := cfg.log.With(zap.String("uri", uri))

	var (
		lastRead atomic.Int64
		inits    atomic.Int64
	)

	sc := &trchttp.StreamClient{
		URI:           uri,
		SendBuffer:    cfg.sendBuf,
		RetryInterval: cfg.retryInterval,
		StatsInterval: cfg.statsInterval,
		OnRead: func(ctx context.Context, eventType string, eventData []byte) {
			lastRead.Store(time.Now().UnixNano())
			switch eventType {
			case "init":
				log.Debugw("stream connected", "reconnect", inits.Add(1) > 1)
			case "stats":
				var stats trc.StreamStats
				if err := json.Unmarshal(eventData, &stats); err == nil {
					log.Debugw("stream stats", "skips", stats.Skips, "sends", stats.Sends, "drops", stats.Drops)
				}
			}
		},
	}

	go func() {
		ticker := time.NewTicker(cfg.statsInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				switch last := lastRead.Load(); {
				case last == 0:
					log.Debugw("no data")
				case now.Sub(time.Unix(0, last)) > 2*cfg.statsInterval:
					log.Debugw("stream idle", "since", now.Sub(time.Unix(0, last)).Truncate(100*time.Millisecond))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Debugw("stream starting")
	defer log.Debugw("stream stopped")

	for ctx.Err() == nil {
		if err := sc.Stream(ctx, cfg.filter, traces); err != nil {
			log.Debugw("stream error, will retry", "err", err)
			contextSleep(ctx, cfg.retryInterval)
		}
	}
}

func (cfg *streamConfig) writeTraces(ctx context.Context, traces <-chan trc.Trace) error {
	encode := cfg.newEncoder(cfg.stdout)

	var count uint64
	for {
		select {
		case tr := <-traces:
			count++
			cfg.log.Debugw("trace", "id", tr.ID(), "category", tr.Category(), "user", tr.User())
			if err := encode(tr); err != nil {
				return fmt.Errorf("write trace: %w", err)
			}
		case <-ctx.Done():
			cfg.log.Debugw("stream finished", "traces", count)
			return ctx.Err()
		}
	}
}

func (cfg *rootConfig) newEncoder(w io.Writer) func(any) error {
	enc := json.NewEncoder(w)
	if cfg.output == "prettyjson" {
		enc.SetIndent("", "    ")
	}
	return enc.Encode
}

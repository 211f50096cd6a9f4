package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/unixtransport/unixproxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trcprincipal"
	"github.com/sessiontrace/trc/trcsession"
	"github.com/sessiontrace/trc/trcuser"
)

type serveConfig struct {
	*rootConfig

	listenAddr     string
	userAttribute  string
	sessionStore   string
	redisAddr      string
	sessionTTL     time.Duration
	jwtKey         string
	tokenTTL       time.Duration
	categorySize   int
	requestHeaders bool
}

func (cfg *serveConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "listen-addr" /*            */, Value: ffval.NewValueDefault(&cfg.listenAddr, "localhost:8080") /*    */, Usage: "HTTP listen address, or unix socket URI"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "session-user-attribute" /* */, Value: ffval.NewValueDefault(&cfg.userAttribute, "login.name") /* */, Usage: "trace user policy: attribute path, ::id, or empty to disable", Placeholder: "POLICY"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "session-store" /*          */, Value: ffval.NewEnum(&cfg.sessionStore, "memory", "redis") /*        */, Usage: "session store: memory, redis"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "redis-addr" /*             */, Value: ffval.NewValueDefault(&cfg.redisAddr, "localhost:6379") /*    */, Usage: "Redis address, for the redis session store"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "session-ttl" /*            */, Value: ffval.NewValueDefault(&cfg.sessionTTL, 30*time.Minute) /*   */, Usage: "idle session TTL, for the redis session store"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "jwt-key" /*                */, Value: ffval.NewValue(&cfg.jwtKey) /*                                 */, Usage: "HMAC key for bearer tokens, random if not set", NoDefault: true})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "token-ttl" /*              */, Value: ffval.NewValueDefault(&cfg.tokenTTL, time.Hour) /*           */, Usage: "bearer token TTL"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "category-size" /*          */, Value: ffval.NewValueDefault(&cfg.categorySize, 1000) /*           */, Usage: "traces retained per category"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "request-headers" /*        */, Value: ffval.NewValue(&cfg.requestHeaders) /*                         */, Usage: "record request headers in traces", NoDefault: true})
}

func (cfg *serveConfig) Exec(ctx context.Context, args []string) error {
	logger := cfg.logger.Named("serve")

	policy := trcuser.ParsePolicy(cfg.userAttribute)
	if policy.Invalid() {
		logger.Warn("invalid user attribute policy, trace users disabled", zap.String("policy", cfg.userAttribute))
	}
	logger.Info("trace users", zap.Stringer("policy", policy))

	store, closeStore, err := cfg.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	key := []byte(cfg.jwtKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate JWT key: %w", err)
		}
		logger.Warn("no JWT key given, using a random key")
	}

	principals, err := trcprincipal.NewJWTSource(trcprincipal.JWTConfig{Key: key, Issuer: "trc"})
	if err != nil {
		return fmt.Errorf("create principal source: %w", err)
	}

	collector := trc.NewCollector(trc.CollectorConfig{
		CategorySize: cfg.categorySize,
		Decorators:   []trc.DecoratorFunc{trc.LogDecorator(cfg.traceWriter())},
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := newApp(appConfig{
		Collector:      collector,
		Policy:         policy,
		Store:          store,
		Principals:     principals,
		Registry:       registry,
		Logger:         logger,
		TokenTTL:       cfg.tokenTTL,
		RequestHeaders: cfg.requestHeaders,
	})

	ln, err := unixproxy.ListenURI(ctx, cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	logger.Info("listening", zap.String("addr", cfg.listenAddr))

	var g run.Group

	{
		server := &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Add(func() error {
			return server.Serve(ln)
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}

	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}

	return g.Run()
}

func (cfg *serveConfig) newStore(ctx context.Context) (trcsession.Store, func(), error) {
	switch cfg.sessionStore {
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.redisAddr},
		})

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping Redis: %w", err)
		}

		store, err := trcsession.NewRedisStore(trcsession.RedisStoreConfig{
			Client: client,
			TTL:    cfg.sessionTTL,
		})
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("create Redis session store: %w", err)
		}

		cfg.log.Infof("session store: redis %s", cfg.redisAddr)
		return store, func() { client.Close() }, nil

	default:
		cfg.log.Infof("session store: memory")
		return trcsession.NewMemoryStore(), func() {}, nil
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/httpapi"
	"github.com/MrEthical07/shopauth/internal/config"
	"github.com/MrEthical07/shopauth/internal/telemetry"
	promexporter "github.com/MrEthical07/shopauth/metrics/export/prometheus"
	"github.com/MrEthical07/shopauth/userstore"
)

const serviceName = "shopauth-api"

func newServeCommand() *cobra.Command {
	var (
		envFile string
		memory  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auth API",
		Long: `Run the auth API configured from SHOPAUTH_* environment variables.

With --memory, Redis is replaced by an embedded instance and accounts are
kept in process memory unless SHOPAUTH_DATABASE_URL is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			l := envconfig.OsLookuper()
			if memory {
				l = envconfig.MultiLookuper(
					envconfig.MapLookuper(map[string]string{config.EnvPrefix + "MEMORY": "true"}),
					l,
				)
			}
			cfg, err := config.LoadFrom(cmd.Context(), l)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log, err := telemetry.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().BoolVar(&memory, "memory", false, "use embedded Redis and in-memory accounts")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	st, err := newStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           st.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting " + serviceName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
	return nil
}

// stack is the wired server: engine, its backing stores and the router.
type stack struct {
	engine  *shopauth.Engine
	handler http.Handler
	closers []func()
}

func newStack(ctx context.Context, cfg config.Config, log zerolog.Logger) (_ *stack, err error) {
	st := &stack{}
	defer func() {
		if err != nil {
			st.Close()
		}
	}()

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		st.onClose(mr.Close)
		redisAddr = mr.Addr()
		log.Warn().Str("addr", redisAddr).Msg("using embedded redis; sessions are lost on exit")
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{redisAddr}})
	st.onClose(func() { _ = rdb.Close() })

	var users userstore.Store
	if cfg.DatabaseURL != "" {
		if err := userstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		pg, err := userstore.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.onClose(pg.Close)
		users = pg
	} else {
		log.Warn().Msg("SHOPAUTH_DATABASE_URL not set; accounts are kept in memory")
		users = userstore.NewMemory()
	}

	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, err
	}

	b := shopauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithLogger(log)

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(serviceName))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		st.onClose(func() { _ = nc.Drain() })
		sink := shopauth.NewNATSSink(nc, cfg.NATSSubject)
		sink.OnError = func(err error) {
			log.Warn().Err(err).Msg("publish audit event")
		}
		b = b.WithAuditSink(sink)
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	st.onClose(engine.Close)
	st.engine = engine

	if err := engine.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.AdminUsername != "" {
		created, err := engine.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("provision admin: %w", err)
		}
		if created {
			log.Info().Str("username", cfg.AdminUsername).Msg("admin account created")
		}
	}

	st.handler = httpapi.NewRouter(engine, httpapi.Options{
		Logger:            log,
		AllowedOrigins:    cfg.AllowedOrigins,
		CookieSecure:      cfg.CookieSecure,
		AccessTTL:         cfg.AccessTokenTTL,
		RefreshTTL:        cfg.RefreshTokenTTL,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Collectors:        []prometheus.Collector{promexporter.NewPrometheusExporter(engine)},
	})
	return st, nil
}

func (s *stack) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

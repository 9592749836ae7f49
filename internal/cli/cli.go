// Package cli holds the process plumbing shared by the command binaries:
// logging, signals, the metrics endpoint and optional backing stores.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"thorswap-lab/internal/config"
	"thorswap-lab/internal/observability"
	"thorswap-lab/internal/storage"
	chstore "thorswap-lab/internal/storage/clickhouse"
	"thorswap-lab/internal/storage/migrations"
	pgstore "thorswap-lab/internal/storage/postgres"
	redisstore "thorswap-lab/internal/storage/redis"
)

// shutdownGrace bounds how long a canceled command may take to stop.
const shutdownGrace = 30 * time.Second

// NewLogger returns a production logger, or a development one when verbose.
func NewLogger(verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		Fatal("init logger", err)
	}
	return logger
}

// Fatal prints a one-line error and exits non-zero.
func Fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", what, err)
	os.Exit(1)
}

// SignalContext returns a context canceled on SIGINT/SIGTERM. A second
// signal, or a stop that exceeds the grace period, exits immediately.
// Call the returned function once the command is done.
func SignalContext(logger *zap.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(shutdownGrace):
			logger.Warn("graceful shutdown timed out, forcing exit", zap.Duration("grace", shutdownGrace))
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

// ServeMetrics starts the /metrics and /health endpoint in the background.
// An empty addr disables it.
func ServeMetrics(addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// LoadConfig applies the .env file, then loads the YAML config over defaults.
func LoadConfig(path, envFile string) (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Stores holds the optional backing stores opened from configuration.
// Nil fields are not configured.
type Stores struct {
	Records storage.RecordStore
	Fits    storage.FitStore
	Seen    storage.SeenKeyStore

	pool    *pgstore.Pool
	redis   *redisstore.Client
	ch      *chstore.Conn
	closers []func()
}

// OpenStores connects to every store with a configured address and runs
// the embedded migrations for Postgres and ClickHouse.
func OpenStores(ctx context.Context, sc config.StorageConfig, logger *zap.Logger) (*Stores, error) {
	s := &Stores{}
	if sc.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.pool = pool
		s.Records = pgstore.NewRecordStore(pool)
		s.Seen = pgstore.NewSeenKeyStore(pool)
		logger.Info("postgres store enabled")
	}
	if sc.RedisAddr != "" {
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
			Prefix:   sc.RedisPrefix,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		s.redis = client
		s.Seen = redisstore.NewSeenKeyStore(client)
		logger.Info("redis seen-key store enabled", zap.String("addr", sc.RedisAddr))
	}
	if sc.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.ch = conn
		s.Fits = chstore.NewFitStore(conn)
		logger.Info("clickhouse fit store enabled")
	}
	return s, nil
}

// CrawlStates returns a shared crawl state store named name, preferring
// Postgres over Redis. ok is false when neither is configured.
func (s *Stores) CrawlStates(name string) (storage.CrawlStateStore, bool) {
	switch {
	case s.pool != nil:
		return pgstore.NewCrawlStateStore(s.pool, name), true
	case s.redis != nil:
		return redisstore.NewCrawlStateStore(s.redis, name), true
	}
	return nil, false
}

// Close releases every connection in reverse open order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

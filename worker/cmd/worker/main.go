package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/paissahouse/paissadb/api/config"
	"github.com/paissahouse/paissadb/queue"
	"github.com/paissahouse/paissadb/utils/pkg/logger"
	"github.com/paissahouse/paissadb/utils/pkg/retry"
	"github.com/paissahouse/paissadb/worker/pkg/metrics"
	"github.com/paissahouse/paissadb/worker/pkg/reconciler"
	"github.com/paissahouse/paissadb/worker/pkg/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:8081"
	defaultMetricsAddr = "0.0.0.0:0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	flag.Parse()

	// Load .env files if they exist. godotenv does not override existing
	// env vars, so process env and explicit exports take precedence.
	_ = godotenv.Load()
	_ = godotenv.Load("worker/.env")

	log := logger.New(*verboseFlag).With("service", "paissadb-worker")

	log.Info("worker starting", "version", version, "commit", commit, "date", date)

	// Sentry error tracking (no-op when the DSN is unset)
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		release := version
		if commit != "none" {
			release = version + "-" + commit
		}
		env := os.Getenv("SENTRY_ENV")
		if env == "" {
			env = "development"
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: env,
			Release:     release,
		}); err != nil {
			log.Warn("sentry initialization failed", "error", err)
		} else {
			log.Info("sentry initialized", "env", env, "release", release)
			defer sentry.Flush(2 * time.Second)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("worker: received signal", "signal", sig.String())
		cancel()
	}()

	// The worker often comes up alongside Postgres and Redis; retry the
	// initial connections while they finish starting.
	if err := retry.Do(ctx, retry.DefaultConfig(), config.LoadPostgres); err != nil {
		return fmt.Errorf("failed to load PostgreSQL: %w", err)
	}
	defer config.ClosePostgres()

	if err := retry.Do(ctx, retry.DefaultConfig(), config.LoadRedis); err != nil {
		return fmt.Errorf("failed to load redis: %w", err)
	}
	defer func() { _ = config.CloseRedis() }()

	var metricsServerErrCh = make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	srv, err := server.New(server.Config{
		ListenAddr:        *listenAddrFlag,
		ReadHeaderTimeout: 30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
		ReconcilerConfig: reconciler.Config{
			Logger: log,
			Clock:  clockwork.NewRealClock(),
			DB:     config.PgPool,
			Queue:  queue.New(config.Redis),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.Run(ctx); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("worker: shutting down", "reason", ctx.Err())
		return nil
	case err := <-serverErrCh:
		log.Error("worker: server error causing shutdown", "error", err)
		return err
	case err := <-metricsServerErrCh:
		log.Error("worker: metrics server error causing shutdown", "error", err)
		return err
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/proxee/config"
	"github.com/angeloszaimis/proxee/internal/httpserver"
	"github.com/angeloszaimis/proxee/internal/loadbalancer"
	"github.com/angeloszaimis/proxee/internal/metrics"
	"github.com/angeloszaimis/proxee/internal/proxy"
	"github.com/angeloszaimis/proxee/internal/relay"
	"github.com/angeloszaimis/proxee/pkg/logger"
)

const (
	metricsBufferSize = 1024
	shutdownTimeout   = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to proxee.toml (default: ./proxee.toml or ./config/proxee.toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, log)
	if err != nil {
		log.Error("Failed to start proxy", slog.Any("err", err))
		os.Exit(1)
	}

	if err := a.run(ctx); err != nil {
		log.Error("Proxy stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

// app owns the bound proxy and metrics servers for one process lifetime.
type app struct {
	log       *slog.Logger
	collector *metrics.Collector
	proxy     *proxy.Server
	metrics   *httpserver.Server
}

// newApp wires the components and binds both listeners. Any error here is
// fatal: nothing has started serving yet.
func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	collector := metrics.NewCollector(metricsBufferSize, log)

	lb := loadbalancer.NewFromConfig(log, cfg.LoadBalancing.Method, cfg.BackendAddresses())

	r := relay.New(log, lb, collector,
		relay.WithDialTimeout(cfg.DialTimeout()),
		relay.WithIdleTimeout(cfg.IdleTimeout()),
	)

	proxySrv, err := proxy.New(log, cfg.ListenAddr(), r)
	if err != nil {
		return nil, fmt.Errorf("create proxy server: %w", err)
	}

	router, err := setupRouter(log, collector, cfg.Metrics.Route, cfg.Metrics.AllowedIPs)
	if err != nil {
		return nil, fmt.Errorf("create metrics router: %w", err)
	}

	metricsSrv, err := httpserver.New(log, cfg.MetricsAddr(), router)
	if err != nil {
		return nil, fmt.Errorf("create metrics server: %w", err)
	}

	if err := proxySrv.Listen(); err != nil {
		return nil, err
	}

	if err := metricsSrv.Listen(); err != nil {
		_ = proxySrv.Shutdown(context.Background())
		return nil, err
	}

	log.Info("Proxy configured",
		slog.String("method", lb.Method().String()),
		slog.Int("backends", len(lb.Backends())),
		slog.String("metrics_route", cfg.Metrics.Route),
	)

	return &app{
		log:       log,
		collector: collector,
		proxy:     proxySrv,
		metrics:   metricsSrv,
	}, nil
}

// run serves until ctx is cancelled or a server fails, then shuts both
// servers down and drains pending metric events.
func (a *app) run(ctx context.Context) error {
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	a.collector.Start(collectorCtx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.proxy.Serve(gctx)
	})

	g.Go(func() error {
		return a.metrics.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(
			a.proxy.Shutdown(shutdownCtx),
			a.metrics.Shutdown(shutdownCtx),
		)
	})

	err := g.Wait()

	stopCollector()
	<-a.collector.Done()

	return err
}

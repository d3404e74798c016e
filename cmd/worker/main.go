package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schoolreport/internal/app"
	"schoolreport/internal/config"
	"schoolreport/internal/jobs"
	"schoolreport/internal/logging"
	"schoolreport/internal/metrics"
	"schoolreport/internal/store"
)

// Worker consumes report jobs from Redis, generates the artifacts and
// records the outcome.
func main() {
	cfg := config.Load()
	log, err := logging.New(cfg, "worker")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatal("QUEUE_BACKEND=memory runs the worker inside the api process; set QUEUE_BACKEND=redis")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.Warn("redis not reachable yet, consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	gen := app.NewGenerator(cfg, log, m)
	arts, err := app.NewArtifactStore(cfg, log)
	if err != nil {
		log.Fatal("artifact store", zap.Error(err))
	}

	w := jobs.NewWorker(jobs.NewRepository(db), gen, arts, log, m, cfg.JobTimeout)
	srv := newMetricsServer(cfg.WorkerMetricsPort, prometheus.DefaultGatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveMetrics(gctx, srv, cfg.ShutdownTimeout, log)
	})
	g.Go(func() error {
		return w.Run(gctx, app.NewQueue(cfg, rdb, log))
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped", zap.Error(err))
	}
}

func newMetricsServer(port string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveMetrics serves srv until ctx is done, then shuts it down within
// timeout.
func serveMetrics(ctx context.Context, srv *http.Server, timeout time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server forced shutdown", zap.Error(err))
		return err
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolreport/internal/app"
	"schoolreport/internal/auth"
	"schoolreport/internal/config"
	"schoolreport/internal/handler"
	"schoolreport/internal/httpmiddleware"
	"schoolreport/internal/jobs"
	"schoolreport/internal/logging"
	"schoolreport/internal/metrics"
	"schoolreport/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg, "api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	gen := app.NewGenerator(cfg, log, m)
	q := app.NewQueue(cfg, rdb, log)
	repo := jobs.NewRepository(db)
	svc := jobs.NewService(repo, q, log)

	checks := map[string]handler.Checker{"db": db}
	if cfg.QueueBackend == "memory" {
		// no separate worker process can reach an in-memory queue, and jobs
		// queued before a restart are gone with it
		n, err := repo.FailStale(ctx, "server restarted before the job finished")
		if err != nil {
			return err
		}
		if n > 0 {
			log.Warn("failed jobs left over from previous run", zap.Int64("jobs", n))
		}
		arts, err := app.NewArtifactStore(cfg, log)
		if err != nil {
			return err
		}
		w := jobs.NewWorker(repo, gen, arts, log, m, cfg.JobTimeout)
		go func() {
			if err := w.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("embedded worker stopped", zap.Error(err))
			}
		}()
	} else {
		checks["redis"] = rdb
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders())

	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	handler.New(gen, svc, checks, log).Register(r,
		auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer),
		auth.RequireRole(auth.RoleAdmin, auth.RoleTeacher),
		limiter.GinMiddleware(),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SchoolAPITimeout + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "X-Report-Rows", "X-Report-Degraded", "X-Report-Skipped", "X-Report-Truncated"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dashboard/internal/attendance"
	"dashboard/internal/auth"
	"dashboard/internal/backend"
	"dashboard/internal/config"
	"dashboard/internal/course"
	"dashboard/internal/handler"
	"dashboard/internal/httpmiddleware"
	"dashboard/internal/logging"
	"dashboard/internal/queue"
	"dashboard/internal/roster"
	"dashboard/internal/session"
	"dashboard/internal/store"
	"dashboard/internal/validation"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.Production())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *store.Redis
	if cfg.SessionBackend == "redis" || cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			log.Warn("redis not reachable", zap.String("addr", cfg.RedisAddr))
		}
	}

	var sessionStore session.Store
	if cfg.SessionBackend == "redis" {
		sessionStore = session.NewRedis(redisClient.Client, "")
	} else {
		sessionStore = session.NewMemory()
	}
	sessions := session.NewManager(sessionStore, cfg.SessionTTL, log)

	client := backend.New(cfg.BackendURL, cfg.BackendTimeout, log)
	client.PageSize = cfg.BackendPageSize
	client.Concurrency = cfg.BackendFetchConcurrency

	var (
		db   *store.DB
		jobs roster.JobStore
		q    queue.Queue
	)
	mode := cfg.ImportMode()
	if cfg.QueueBackend == config.ImportRedis && mode != config.ImportRedis {
		log.Warn("redis import queue needs SESSION_BACKEND=redis for the worker, roster uploads run inline",
			zap.String("session_backend", cfg.SessionBackend))
	}
	switch mode {
	case config.ImportMemory:
		mem := queue.NewInMemory(64)
		jobs, q = roster.NewMemoryJobs(), mem
		worker := roster.NewWorker(jobs, mem, sessions, client, log)
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error("import worker failed", zap.Error(err))
			}
		}()
	case config.ImportRedis:
		conn, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err == nil {
			err = conn.Migrate(ctx, roster.Schema)
		}
		if err != nil {
			log.Warn("db not reachable, roster uploads run inline", zap.Error(err))
			_ = conn.Close()
			break
		}
		db = conn
		defer db.Close()
		jobs = roster.NewRepository(db.Client)
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log)
	default:
		log.Info("roster uploads run inline", zap.String("queue_backend", cfg.QueueBackend))
	}

	v := validation.New()
	course.Register(v)

	h := handler.New(handler.Deps{
		Backend:        client,
		Attendance:     attendance.NewService(client, v, log),
		Sessions:       sessions,
		Issuer:         auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Importer:       roster.NewImporter(jobs, q, client, cfg.ImportMaxBytes, log),
		Validator:      v,
		Log:            log,
		MaxUploadBytes: cfg.ImportMaxBytes,
	})

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, nil)
	go sweepLimiter(ctx, limiter)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Gin(log, "/healthz", "/metrics"))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(securityHeaders())
	r.Use(limiter.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		body := gin.H{"status": "ok", "backend": client.Health(checkCtx) == nil}
		healthy := true
		if redisClient != nil {
			ok := redisClient.Healthy(checkCtx)
			body["redis"] = ok
			healthy = healthy && ok
		}
		if db != nil {
			ok := db.Healthy(checkCtx)
			body["db"] = ok
			healthy = healthy && ok
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	})

	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.BackendTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func sweepLimiter(ctx context.Context, l *httpmiddleware.TokenBucket) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.Sweep(10 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "X-Export-Rows", "Retry-After"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
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

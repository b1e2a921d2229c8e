package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fooforms/fooforms/backend/go-services/internal/config"
	"github.com/fooforms/fooforms/backend/go-services/internal/database"
	"github.com/fooforms/fooforms/backend/go-services/internal/form"
	"github.com/fooforms/fooforms/backend/go-services/internal/form/handler"
	"github.com/fooforms/fooforms/backend/go-services/internal/form/repository"
	"github.com/fooforms/fooforms/backend/go-services/internal/form/service"
	"github.com/fooforms/fooforms/backend/go-services/internal/oidc"
	"github.com/fooforms/fooforms/backend/go-services/internal/storage"
	"github.com/fooforms/fooforms/backend/go-services/pkg/logger"
	"github.com/fooforms/fooforms/backend/go-services/pkg/metrics"
	"github.com/fooforms/fooforms/backend/go-services/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const mongoConnectAttempts = 5

var startTime = time.Now()

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: mongo=%v redis=%v minio=%v oidc=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.Auth.Issuer != "")

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer app.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("form service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown: %v", err)
	}
}

// app holds everything created at startup that must be released on exit.
type app struct {
	engine *gin.Engine
	db     *database.DB
	redis  *redis.Client
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.db != nil {
		if err := a.db.Close(ctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.CORS())

	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = client.Close()
		} else {
			logger.Infof("connected to Redis at %s", addr)
			a.redis = client
		}
	}

	var store form.Store
	if cfg.MongoDB.URI != "" {
		db, err := database.Open(ctx, cfg.MongoDB, mongoConnectAttempts)
		if err != nil {
			logger.Warnf("%v; using memory-backed repo", err)
		} else {
			a.db = db
			repo := repository.NewMongoRepo(db.Collection(cfg.MongoDB.Collection))
			if err := repo.EnsureIndexes(ctx); err != nil {
				logger.Warnf("%v", err)
			}
			store = repo
		}
	}
	if store == nil {
		store = repository.NewMemoryRepo()
	}
	if a.redis != nil {
		store = repository.NewCachedRepo(store, a.redis, "form:", cfg.Forms.CacheTTL)
	}
	model := form.NewModel(store, form.WithURLPrefix(cfg.Forms.URLPrefix))

	var icons service.IconStore
	if cfg.MinIO.Endpoint != "" {
		s, err := storage.NewIconStore(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("icon storage disabled: %v", err)
		} else {
			icons = s
		}
	}
	svc := service.New(model, icons)

	verifier, err := oidc.FromConfig(ctx, cfg.Auth)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("auth: %w", err)
	}
	var routeOpts []handler.RouteOption
	if verifier != nil {
		routeOpts = append(routeOpts, handler.WithWriteGuards(middleware.AuthMiddleware(verifier)))
	} else {
		logger.Warnf("no token verifier configured; form writes are unauthenticated")
	}
	if cfg.RateLimit.Enabled {
		// limits run behind auth so writes are keyed by subject
		if cfg.RateLimit.UseRedis && a.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			routeOpts = append(routeOpts, handler.WithRateLimit(middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)))
		} else {
			routeOpts = append(routeOpts, handler.WithRateLimit(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
		}
	}

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"mongo": true, "redis": true}
		ready := true
		if cfg.MongoDB.URI != "" {
			ok := a.db != nil && a.db.Ping(c.Request.Context()) == nil
			deps["mongo"] = ok
			ready = ready && ok
		}
		if cfg.Redis.Host != "" {
			ok := a.redis != nil && a.redis.Ping(c.Request.Context()).Err() == nil
			deps["redis"] = ok
			ready = ready && ok
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handler.RegisterSwagger(r)
	handler.RegisterFormRoutes(r, svc, routeOpts...)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.engine = r
	return a, nil
}

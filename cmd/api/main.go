package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/api/mgt"
	v1 "github.com/StoryBB/StoryBB-sub002/internal/api/v1"
	"github.com/StoryBB/StoryBB-sub002/internal/core/audit"
	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/core/database"
	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/core/runtime"
	"github.com/StoryBB/StoryBB-sub002/internal/core/snowflake"
	"github.com/StoryBB/StoryBB-sub002/internal/middleware"
	"github.com/StoryBB/StoryBB-sub002/internal/pkg/pool"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置 (Viper)
	if err := config.Init("."); err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 2. 初始化 Logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting forum admin api...")

	// 3. 初始化 MySQL
	if err := database.Init(&cfg.Database); err != nil {
		logger.Error("Failed to init database", logger.ErrorField(err))
		os.Exit(1)
	}
	defer database.Close()

	// 4. 初始化 Redis (L2 缓存和事件通道)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	// 5. 初始化 L1 缓存
	l1, err := pool.NewBigCache(cfg.Cache.L1SizeMB, time.Duration(cfg.Cache.L2TTL)*time.Second)
	if err != nil {
		logger.Error("Failed to init bigcache", logger.ErrorField(err))
		os.Exit(1)
	}
	defer l1.Close()
	store := cache.NewStore(l1, redisClient, time.Duration(cfg.Cache.L2TTL)*time.Second)

	// 6. 初始化 Snowflake (审计记录 id)
	if err := snowflake.Init(&cfg.Snowflake); err != nil {
		logger.Error("Failed to init snowflake", logger.ErrorField(err))
		os.Exit(1)
	}

	// 7. 初始化 Service
	hub := event.NewHub(redisClient, event.DefaultChannel)
	svc := service.New(service.Deps{
		DB:          database.Get(),
		Audit:       audit.NewDBSink(database.Get()),
		Cache:       store,
		Events:      hub,
		Maintenance: cfg.Maintenance,
		JobSecret:   cfg.JWT.Secret,
	})

	// 版块结构在其他实例上变更时丢弃本地快照
	for _, name := range []string{event.BoardsChanged, event.MembergroupsDeleted} {
		hub.Subscribe(name, func(ctx context.Context, ev event.Event) {
			store.Invalidate(ctx, cache.KeyBoardOrder)
		})
	}
	listenCtx, stopListen := context.WithCancel(context.Background())
	defer stopListen()
	go func() {
		if err := hub.Listen(listenCtx); err != nil {
			logger.Error("event listener stopped", logger.ErrorField(err))
		}
	}()

	// 8. Runtime 预热
	if err := runtime.Init(context.Background(), &runtime.RuntimeConfig{Services: svc}); err != nil {
		logger.Error("Failed to init runtime", logger.ErrorField(err))
	}
	logger.Info("Runtime warmup: " + runtime.WarmUpLog())

	// 9. 注册路由
	gin.SetMode(cfg.App.Mode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.LoggerMiddleware())

	router.GET("/health", func(c *gin.Context) {
		if err := database.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{
			"status":    "healthy",
			"runtime":   runtime.Get().Status(),
			"timestamp": time.Now().Unix(),
		})
	})

	router.GET("/healthz", func(c *gin.Context) {
		status := "ok"
		checks := make(map[string]string)

		if err := database.Ping(); err != nil {
			status = "error"
			checks["mysql"] = err.Error()
		} else {
			checks["mysql"] = "ok"
		}

		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			status = "error"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}

		code := 200
		if status != "ok" {
			code = 503
		}
		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().Unix(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var limiter *middleware.IPLimiter
	if cfg.Security.RateLimit > 0 {
		limiter = middleware.NewIPLimiter(cfg.Security.RateLimit, time.Minute)
	}

	// Public API (v1)
	v1.RegisterRoutes(router.Group("/api/v1", middleware.RateLimitMW(limiter)), svc)

	// Management API - 强制 IP 白名单和 JWT
	mgtGroup := router.Group("/api/mgt")
	mgtGroup.Use(middleware.AdminWhitelistMW(&cfg.Security))
	mgtGroup.Use(middleware.RateLimitMW(limiter))
	mgtGroup.Use(middleware.JWTMW(&cfg.JWT))
	mgt.RegisterRoutes(mgtGroup, svc)

	// 10. 启动 HTTP Server
	srv := &http.Server{
		Addr:    cfg.App.GetServerAddr(),
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", logger.ErrorField(err))
		}
	}()

	// pprof Server
	go func() {
		logger.Info("PProf server starting", logger.String("addr", "localhost:6060"))
		if err := http.ListenAndServe("localhost:6060", nil); err != nil && err != http.ErrServerClosed {
			logger.Error("PProf server error", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server exited gracefully")
}

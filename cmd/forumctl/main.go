package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/core/audit"
	"github.com/StoryBB/StoryBB-sub002/internal/core/cache"
	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/core/database"
	"github.com/StoryBB/StoryBB-sub002/internal/core/event"
	"github.com/StoryBB/StoryBB-sub002/internal/core/logger"
	"github.com/StoryBB/StoryBB-sub002/internal/core/snowflake"
	"github.com/StoryBB/StoryBB-sub002/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	configPath string
	noRedis    bool

	// svc 由 PersistentPreRunE 装配，测试中直接注入
	svc     *service.Services
	cleanup []func()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forumctl",
		Short:         "Forum board and statistics maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if svc != nil || cmd.Name() == "token" {
				return nil
			}
			return setup()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml")
	root.PersistentFlags().BoolVar(&noRedis, "no-redis", false, "skip redis; other instances will not see cache invalidations")

	root.AddCommand(newTreeCmd(), newReorderCmd(), newRecountCmd(), newStatsCmd(), newTokenCmd())
	return root
}

// setup 按 api 服务相同的顺序初始化依赖
func setup() error {
	if err := config.Init(configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cleanup = append(cleanup, logger.Sync)

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	cleanup = append(cleanup, func() { _ = database.Close() })

	if err := snowflake.Init(&cfg.Snowflake); err != nil {
		return fmt.Errorf("init snowflake: %w", err)
	}

	deps := service.Deps{
		DB:          database.Get(),
		Audit:       audit.NewDBSink(database.Get()),
		Maintenance: cfg.Maintenance,
		JobSecret:   cfg.JWT.Secret,
	}
	if !noRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup = append(cleanup, func() { _ = rdb.Close() })
		deps.Cache = cache.NewStore(nil, rdb, time.Duration(cfg.Cache.L2TTL)*time.Second)
		deps.Events = event.NewHub(rdb, event.DefaultChannel)
	}
	svc = service.New(deps)
	return nil
}

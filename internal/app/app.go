package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flip-advisor/internal/api"
	"flip-advisor/internal/config"
	"flip-advisor/internal/history"
	"flip-advisor/internal/market"
	"flip-advisor/internal/monitor"
	"flip-advisor/internal/session"
	"flip-advisor/internal/store"
	"flip-advisor/internal/strategy"
	"flip-advisor/internal/suggestion"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	cache    *market.SnapshotCache
	sessions *session.Registry
	server   *api.Server
}

// New 按配置组装行情缓存、打分器、建议引擎与 HTTP 服务。
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, st *store.Store) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: 配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	feed, err := market.NewWikiClient(cfg.Feed, logger.Named("feed"))
	if err != nil {
		return nil, fmt.Errorf("初始化行情客户端失败: %w", err)
	}

	cache := market.NewSnapshotCache(feed, market.CacheConfig{
		RefreshInterval: cfg.Strategy.RefreshInterval,
		FetchTimeout:    cfg.Feed.Timeout,
	}, logger.Named("cache"))

	monitorSvc, err := monitor.NewService(ctx, st, logger.Named("monitor"))
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	trades, err := history.NewStore(ctx, st, logger.Named("history"))
	if err != nil {
		return nil, fmt.Errorf("初始化交易记录失败: %w", err)
	}

	scorer := strategy.NewScorer(strategy.PolicyFromConfig(cfg.Strategy), logger.Named("strategy"))
	engine, err := suggestion.NewEngine(cache, scorer, monitorSvc, logger.Named("engine"))
	if err != nil {
		return nil, fmt.Errorf("初始化建议引擎失败: %w", err)
	}

	sessions := session.NewRegistry(logger.Named("session"))
	server, err := api.NewServer(cfg.Server, api.Deps{
		Engine:   engine,
		Sessions: sessions,
		Prices:   feed,
		History:  trades,
		Events:   monitorSvc,
	}, logger.Named("api"))
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		sessions: sessions,
		server:   server,
	}, nil
}

// Run 启动 HTTP 服务并周期清理闲置会话，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("建议服务已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("feed", a.cfg.Feed.BaseURL),
	)

	// 预热行情，失败时首个请求会再次尝试
	if _, err := a.cache.Get(ctx); err != nil {
		a.logger.Warn("行情预热失败", zap.Error(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Run(groupCtx)
	})
	group.Go(func() error {
		a.evictLoop(groupCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

func (a *App) evictLoop(ctx context.Context) {
	ttl := a.cfg.Server.SessionTTL
	if ttl <= 0 {
		return
	}

	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sessions.Evict(ttl)
		}
	}
}

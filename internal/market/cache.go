package market

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"flip-advisor/internal/trace"
)

const refreshKey = "snapshot"

// CacheConfig 控制快照缓存的刷新节奏。
type CacheConfig struct {
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
}

// SnapshotCache 持有最近一次成功拉取的行情快照，采用“过期则刷新、失败则沿用旧快照”的策略。
//
// 同一过期窗口内并发调用只会触发一次上游拉取；已返回给调用方的快照不会被后续刷新修改。
type SnapshotCache struct {
	feed     Feed
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	current     atomic.Pointer[Snapshot]
	lastAttempt atomic.Int64
	group       singleflight.Group
}

// NewSnapshotCache 创建快照缓存，首次 Get 时才会拉取数据。
func NewSnapshotCache(feed Feed, cfg CacheConfig, logger *zap.Logger) *SnapshotCache {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 60 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotCache{
		feed:     feed,
		interval: cfg.RefreshInterval,
		timeout:  cfg.FetchTimeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Get 返回当前快照，必要时同步刷新。
// 只有在从未成功获取过数据且刷新失败时才返回 ErrMarketDataUnavailable。
func (c *SnapshotCache) Get(ctx context.Context) (*Snapshot, error) {
	snap := c.current.Load()
	if !c.needsRefresh(snap) {
		return snap, nil
	}

	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		// 等待期间可能已有其他调用完成刷新
		latest := c.current.Load()
		if !c.needsRefresh(latest) {
			return latest, nil
		}
		return c.refresh(ctx, latest)
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(*Snapshot), nil
		}
		if prev := c.current.Load(); prev != nil {
			return prev, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrMarketDataUnavailable, res.Err)
	case <-ctx.Done():
		if prev := c.current.Load(); prev != nil {
			return prev, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrMarketDataUnavailable, classify(ctx.Err()))
	}
}

// Current 返回当前快照而不触发刷新，尚无数据时为 nil。
func (c *SnapshotCache) Current() *Snapshot {
	return c.current.Load()
}

// 已有快照时刷新尝试（无论成败）每个周期至多一次；尚无快照时每次调用都会尝试。
func (c *SnapshotCache) needsRefresh(snap *Snapshot) bool {
	if snap == nil {
		return true
	}
	last := time.Unix(0, c.lastAttempt.Load())
	return c.now().Sub(last) > c.interval
}

func (c *SnapshotCache) refresh(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
	started := c.now()
	c.lastAttempt.Store(started.UnixNano())

	// 刷新结果由所有等待者共享，不能随首个调用方取消
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	fetchCtx, span := trace.StartSpan(fetchCtx, "market.refresh")
	defer span.End()

	var (
		catalog map[int]ItemMetadata
		stats   map[int]PriceStat
	)

	group, groupCtx := errgroup.WithContext(fetchCtx)

	group.Go(func() error {
		data, err := c.feed.FetchCatalog(groupCtx)
		if err != nil {
			return err
		}
		catalog = data
		return nil
	})

	group.Go(func() error {
		data, err := c.feed.FetchRollingStats(groupCtx)
		if err != nil {
			return err
		}
		stats = data
		return nil
	})

	if err := group.Wait(); err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")

		if prev != nil {
			c.logger.Warn("行情刷新失败，继续使用旧快照",
				zap.Time("fetched_at", prev.FetchedAt),
				zap.Duration("staleness", started.Sub(prev.FetchedAt)),
				zap.Error(err),
			)
		} else {
			c.logger.Error("行情刷新失败且无可用快照", zap.Error(err))
		}
		return nil, err
	}

	snapshot := &Snapshot{
		Metadata:  catalog,
		Stats:     stats,
		FetchedAt: started,
	}
	c.current.Store(snapshot)

	span.SetAttributes(
		attribute.Int("catalog.size", len(catalog)),
		attribute.Int("stats.size", len(stats)),
	)
	c.logger.Info("行情快照已刷新",
		zap.Int("catalog_count", len(catalog)),
		zap.Int("stats_count", len(stats)),
		zap.Duration("latency", c.now().Sub(started)),
	)

	return snapshot, nil
}

package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"flip-advisor/internal/config"
)

// Feed 是上游行情来源：物品目录与滚动价格统计两份数据。
type Feed interface {
	FetchCatalog(ctx context.Context) (map[int]ItemMetadata, error)
	FetchRollingStats(ctx context.Context) (map[int]PriceStat, error)
}

// WikiClient 负责与价格 wiki 接口交互并实现重试机制。
type WikiClient struct {
	cfg    config.FeedConfig
	logger *zap.Logger
	http   *resty.Client
}

var _ Feed = (*WikiClient)(nil)

// NewWikiClient 构造行情客户端。
func NewWikiClient(cfg config.FeedConfig, logger *zap.Logger) (*WikiClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("market: feed.base_url 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &WikiClient{
		cfg:    cfg,
		logger: logger,
		http:   httpClient,
	}, nil
}

type mappingEntry struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Limit   int    `json:"limit"`
	Members bool   `json:"members"`
}

type bulkPriceResponse struct {
	Data      map[string]PriceStat `json:"data"`
	Timestamp int64                `json:"timestamp"`
}

type latestEntry struct {
	High     *int   `json:"high"`
	HighTime *int64 `json:"highTime"`
	Low      *int   `json:"low"`
	LowTime  *int64 `json:"lowTime"`
}

type latestResponse struct {
	Data map[string]latestEntry `json:"data"`
}

// FetchCatalog 拉取物品目录。
func (c *WikiClient) FetchCatalog(ctx context.Context) (map[int]ItemMetadata, error) {
	var entries []mappingEntry
	if err := c.getJSON(ctx, "/mapping", nil, &entries); err != nil {
		return nil, err
	}

	catalog := make(map[int]ItemMetadata, len(entries))
	for _, e := range entries {
		catalog[e.ID] = ItemMetadata(e)
	}
	return catalog, nil
}

// FetchRollingStats 拉取5分钟滚动均价与成交量。
func (c *WikiClient) FetchRollingStats(ctx context.Context) (map[int]PriceStat, error) {
	var resp bulkPriceResponse
	if err := c.getJSON(ctx, "/5m", nil, &resp); err != nil {
		return nil, err
	}

	stats := make(map[int]PriceStat, len(resp.Data))
	for key, stat := range resp.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			c.logger.Debug("忽略无法解析的物品编号", zap.String("key", key))
			continue
		}
		stats[id] = stat
	}
	return stats, nil
}

// FetchLatest 查询单个物品的最新成交价，物品无数据时 Available 为 false。
func (c *WikiClient) FetchLatest(ctx context.Context, itemID int) (LatestPrice, error) {
	var resp latestResponse
	query := map[string]string{"id": strconv.Itoa(itemID)}
	if err := c.getJSON(ctx, "/latest", query, &resp); err != nil {
		return LatestPrice{}, err
	}

	result := LatestPrice{ItemID: itemID}
	entry, ok := resp.Data[strconv.Itoa(itemID)]
	if !ok {
		return result, nil
	}

	result.Available = true
	result.High = valueOrZero(entry.High)
	result.Low = valueOrZero(entry.Low)
	if entry.HighTime != nil {
		result.HighTime = time.Unix(*entry.HighTime, 0).UTC()
	}
	if entry.LowTime != nil {
		result.LowTime = time.Unix(*entry.LowTime, 0).UTC()
	}
	return result, nil
}

func (c *WikiClient) getJSON(ctx context.Context, path string, query map[string]string, out interface{}) error {
	return c.callWithRetry(ctx, path, func() error {
		req := c.http.R().
			SetContext(ctx).
			ForceContentType("application/json").
			SetResult(out)
		if len(query) > 0 {
			req.SetQueryParams(query)
		}

		resp, err := req.Get(path)
		if err != nil {
			return classify(err)
		}
		if resp.IsError() {
			return &StatusError{Code: resp.StatusCode(), Path: path}
		}
		return nil
	})
}

func (c *WikiClient) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return classify(ctxErr)
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("行情接口重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		if !IsRetryable(err) || attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Error("行情接口调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(err),
			)
			return fmt.Errorf("market: %s: %w", operation, err)
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("行情接口调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("market: %s: %w", operation, classify(ctx.Err()))
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"flip-advisor/internal/account"
	"flip-advisor/internal/config"
	"flip-advisor/internal/history"
	"flip-advisor/internal/market"
	"flip-advisor/internal/monitor"
	"flip-advisor/internal/session"
	"flip-advisor/internal/suggestion"
)

// Generator 生成单条建议，suggestion.Engine 为其实现。
type Generator interface {
	Generate(ctx context.Context, state *account.State) (suggestion.Suggestion, error)
}

// PriceLookup 查询单个物品的最新价格。
type PriceLookup interface {
	FetchLatest(ctx context.Context, itemID int) (market.LatestPrice, error)
}

// TradeStore 为收益统计所需的交易存储。
type TradeStore interface {
	Append(ctx context.Context, accountID string, trade history.Trade) (bool, error)
	Summarize(ctx context.Context, accountID string) (history.Summary, error)
}

// EventLog 为监控事件的读写接口。
type EventLog interface {
	RecordTrade(ctx context.Context, accountID string, trade history.Trade)
	RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{})
	ListEvents(ctx context.Context, eventType monitor.EventType, limit int) ([]monitor.Event, error)
}

var (
	_ Generator   = (*suggestion.Engine)(nil)
	_ PriceLookup = (*market.WikiClient)(nil)
	_ TradeStore  = (*history.Store)(nil)
	_ EventLog    = (*monitor.Service)(nil)
)

// Deps 汇总 HTTP 层依赖。
type Deps struct {
	Engine   Generator
	Sessions *session.Registry
	Prices   PriceLookup
	History  TradeStore
	Events   EventLog
}

// Server 对外提供建议与收益统计接口。
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewServer 创建 HTTP 服务。
func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Engine == nil || deps.Sessions == nil {
		return nil, errors.New("api: 建议引擎与会话注册表不能为空")
	}
	if deps.Prices == nil || deps.History == nil || deps.Events == nil {
		return nil, errors.New("api: 价格查询、交易存储与事件日志不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler 返回路由，便于测试直接挂载。
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run 启动监听，ctx 取消后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP 服务已启动", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api: 监听失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: 关闭服务失败: %w", err)
	}
	s.logger.Info("HTTP 服务已关闭")
	return nil
}

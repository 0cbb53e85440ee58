package suggestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"flip-advisor/internal/account"
	"flip-advisor/internal/market"
	"flip-advisor/internal/strategy"
	"flip-advisor/internal/trace"
)

// SnapshotSource 提供当前行情快照，market.SnapshotCache 为其标准实现。
type SnapshotSource interface {
	Get(ctx context.Context) (*market.Snapshot, error)
}

var _ SnapshotSource = (*market.SnapshotCache)(nil)

// Recorder 接收每条已生成的建议，用于监控留档。
type Recorder interface {
	RecordSuggestion(ctx context.Context, accountID string, s Suggestion, ranking *strategy.Ranking)
}

// Engine 根据账户状态与行情快照生成单条操作建议。
//
// Generate 会修改传入的账户状态（价格记忆、跳过记录），同一账户的调用需由上层串行化。
type Engine struct {
	source   SnapshotSource
	scorer   *strategy.Scorer
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastCommand int64
}

// NewEngine 创建建议引擎，recorder 可为空。
func NewEngine(source SnapshotSource, scorer *strategy.Scorer, recorder Recorder, logger *zap.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("suggestion: 行情来源不能为空")
	}
	if scorer == nil {
		return nil, fmt.Errorf("suggestion: 打分器不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source:   source,
		scorer:   scorer,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Generate 为账户生成下一步建议。
//
// 仅在从未取得行情数据时返回错误（可用 errors.Is(err, market.ErrMarketDataUnavailable) 判断），
// 其余无机会的情况均以等待建议返回。
func (e *Engine) Generate(ctx context.Context, state *account.State) (Suggestion, error) {
	if state == nil {
		return Suggestion{}, fmt.Errorf("suggestion: 账户状态不能为空")
	}

	ctx, span := trace.StartSpan(ctx, "suggestion.generate",
		oteltrace.WithAttributes(attribute.String("account", state.AccountID)),
	)
	defer span.End()

	now := e.now()
	policy := e.scorer.Policy()

	if state.SkipRequested && state.ItemToSkip > 0 {
		state.MarkSkipped(state.ItemToSkip, now)
		e.logger.Info("用户跳过物品",
			zap.String("account", state.AccountID),
			zap.Int("item_id", state.ItemToSkip),
		)
	}
	state.SkipRequested = false
	state.PruneSkips(now, policy.SkipCooldown)
	if dropped := state.PrunePriceMemory(now, policy.PriceMemoryTTL); dropped > 0 {
		e.logger.Debug("清理未成交的价格记录",
			zap.String("account", state.AccountID),
			zap.Int("count", dropped),
		)
	}

	if state.SuggestionsPaused {
		return e.emit(ctx, span, state, now, wait(msgPaused), nil), nil
	}

	box, ok := state.EmptySlot()
	if !ok {
		return e.emit(ctx, span, state, now, wait(msgNoSlot), nil), nil
	}

	snap, err := e.source.Get(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "market data unavailable")
		e.logger.Error("无法获取行情，建议生成失败",
			zap.String("account", state.AccountID),
			zap.Error(err),
		)
		return Suggestion{}, fmt.Errorf("suggestion: 获取行情失败: %w", err)
	}

	if sell := e.scorer.EvaluateSell(snap, state); sell != nil {
		state.Forget(sell.ItemID)
		s := Suggestion{
			Type:     TypeSell,
			BoxID:    box,
			ItemID:   sell.ItemID,
			Price:    sell.Price,
			Quantity: sell.Quantity,
			Name:     sell.Name,
			Message:  fmt.Sprintf("Margin: %d gp", sell.ProfitPerUnit),
		}
		if state.SendGraphData {
			s.Graph = graphFor(snap, sell.ItemID, sell.Name)
		}
		return e.emit(ctx, span, state, now, s, nil), nil
	}

	if state.SellOnly {
		return e.emit(ctx, span, state, now, wait(msgSellOnly), nil), nil
	}

	ranking := e.scorer.Rank(snap, state, now)
	best := ranking.Best
	if best == nil {
		return e.emit(ctx, span, state, now, wait(msgWaiting), &ranking), nil
	}

	quantity := int64(best.Limit)
	if affordable := state.SpendableValue() / int64(best.BuyPrice); affordable < quantity {
		quantity = affordable
	}

	if quantity <= 0 {
		state.MarkSkipped(best.ItemID, now)
		e.logger.Debug("可买数量为零，物品进入冷却",
			zap.String("account", state.AccountID),
			zap.Int("item_id", best.ItemID),
			zap.Int("limit", best.Limit),
		)
		return e.emit(ctx, span, state, now, wait(msgWaiting), &ranking), nil
	}

	state.Remember(best.ItemID, account.PricePair{BuyPrice: best.BuyPrice, SellPrice: best.SellPrice, RememberedAt: now})
	s := Suggestion{
		Type:     TypeBuy,
		BoxID:    box,
		ItemID:   best.ItemID,
		Price:    best.BuyPrice,
		Quantity: int(quantity),
		Name:     best.Name,
		Message:  fmt.Sprintf("Margin: %d gp", best.ProfitPerUnit),
	}
	if state.SendGraphData {
		s.Graph = graphFor(snap, best.ItemID, best.Name)
	}
	return e.emit(ctx, span, state, now, s, &ranking), nil
}

func (e *Engine) emit(ctx context.Context, span oteltrace.Span, state *account.State, now time.Time, s Suggestion, ranking *strategy.Ranking) Suggestion {
	s.CommandID = e.nextCommandID(now)

	span.SetAttributes(
		attribute.String("suggestion.type", string(s.Type)),
		attribute.Int("suggestion.item_id", s.ItemID),
	)
	e.logger.Info("生成建议",
		zap.String("account", state.AccountID),
		zap.String("type", string(s.Type)),
		zap.Int("item_id", s.ItemID),
		zap.String("name", s.Name),
		zap.Int("price", s.Price),
		zap.Int("quantity", s.Quantity),
		zap.Int("box_id", s.BoxID),
		zap.Int64("command_id", s.CommandID),
	)

	if e.recorder != nil {
		e.recorder.RecordSuggestion(ctx, state.AccountID, s, ranking)
	}
	return s
}

// nextCommandID 以秒级时间戳为基础，保证严格递增。
func (e *Engine) nextCommandID(now time.Time) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := now.Unix()
	if id <= e.lastCommand {
		id = e.lastCommand + 1
	}
	e.lastCommand = id
	return id
}

func graphFor(snap *market.Snapshot, itemID int, name string) GraphData {
	stat := snap.Stats[itemID]
	buy, _ := stat.BuyPrice()
	sell, _ := stat.SellPrice()
	return GraphData{
		ItemID:      itemID,
		Name:        name,
		BuyPrice:    buy,
		SellPrice:   sell,
		DailyVolume: float64(stat.TotalVolume()),
	}
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flip-advisor/internal/store"
)

// ErrEmptyAccount 表示未提供账户名。
var ErrEmptyAccount = errors.New("history: 账户名不能为空")

// Trade 为客户端上报的一笔已完成交易。
type Trade struct {
	ID         string    `json:"id"`
	ItemID     int       `json:"item_id"`
	Type       string    `json:"type"`
	Price      int       `json:"price"`
	Quantity   int       `json:"quantity"`
	Profit     int64     `json:"profit"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Summary 为账户的收益汇总。
type Summary struct {
	TotalProfit int64 `json:"gp_earned"`
	TradeCount  int   `json:"flips"`
}

// Store 持久化交易记录，仅用于收益统计，选品流程不会读取。
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trade_history (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		trade_type TEXT NOT NULL,
		price INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		profit INTEGER NOT NULL DEFAULT 0,
		occurred_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_trade_history_account ON trade_history(account_id, occurred_at);`,
}

// NewStore 创建交易记录存储并初始化表结构。
func NewStore(ctx context.Context, st *store.Store, logger *zap.Logger) (*Store, error) {
	if st == nil {
		return nil, errors.New("history: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := st.Migrate(ctx, schema...); err != nil {
		return nil, fmt.Errorf("history: 初始化表结构失败: %w", err)
	}
	return &Store{
		db:     st.DB(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Append 追加一笔交易。缺省 ID 时生成 UUID；重复 ID 会被忽略，返回 false。
func (s *Store) Append(ctx context.Context, accountID string, trade Trade) (bool, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return false, ErrEmptyAccount
	}
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.OccurredAt.IsZero() {
		trade.OccurredAt = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO trade_history (id, account_id, item_id, trade_type, price, quantity, profit, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, accountID, trade.ItemID, trade.Type, trade.Price, trade.Quantity, trade.Profit,
		trade.OccurredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("history: 写入交易失败: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("history: 读取写入结果失败: %w", err)
	}
	if affected == 0 {
		s.logger.Debug("交易已存在，忽略", zap.String("account", accountID), zap.String("id", trade.ID))
		return false, nil
	}
	return true, nil
}

// Summarize 汇总账户的累计收益与交易笔数。
func (s *Store) Summarize(ctx context.Context, accountID string) (Summary, error) {
	var summary Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(profit), 0), COUNT(*) FROM trade_history WHERE account_id = ?`,
		strings.TrimSpace(accountID),
	).Scan(&summary.TotalProfit, &summary.TradeCount)
	if err != nil {
		return Summary{}, fmt.Errorf("history: 汇总交易失败: %w", err)
	}
	return summary, nil
}

// Recent 按时间倒序返回最近的交易。
func (s *Store) Recent(ctx context.Context, accountID string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, trade_type, price, quantity, profit, occurred_at
		 FROM trade_history WHERE account_id = ?
		 ORDER BY occurred_at DESC, rowid DESC LIMIT ?`,
		strings.TrimSpace(accountID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: 查询交易失败: %w", err)
	}
	defer rows.Close()

	trades := make([]Trade, 0, limit)
	for rows.Next() {
		var (
			trade    Trade
			occurred string
		)
		if err := rows.Scan(&trade.ID, &trade.ItemID, &trade.Type, &trade.Price, &trade.Quantity, &trade.Profit, &occurred); err != nil {
			return nil, fmt.Errorf("history: 解析交易失败: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339, occurred); parseErr == nil {
			trade.OccurredAt = ts
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: 读取交易失败: %w", err)
	}
	return trades, nil
}

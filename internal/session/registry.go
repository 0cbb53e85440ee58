package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"flip-advisor/internal/account"
)

// ErrEmptyAccount 表示请求未携带账户名。
var ErrEmptyAccount = errors.New("session: 账户名不能为空")

// Update 为客户端每次请求上报的账户快照。
// 挂单、背包与开关类字段整体覆盖；跳过记录与价格记忆由服务端保留。
type Update struct {
	Offers        []account.Offer
	Items         []account.InventoryItem
	SellOnly      bool
	F2POnly       bool
	BlockedItems  []int
	SkipItem      int
	Paused        bool
	SendGraphData bool
}

type entry struct {
	mu       sync.Mutex
	state    *account.State
	lastSeen time.Time
}

// Registry 维护各账户的持久状态，并保证同一账户的调用串行执行。
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	logger   *zap.Logger
	now      func() time.Time
}

// NewRegistry 创建会话注册表。
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*entry),
		logger:   logger,
		now:      time.Now,
	}
}

// With 在持有账户锁的情况下合并请求并执行 fn；不同账户可并行。
func (r *Registry) With(accountID string, update Update, fn func(*account.State) error) error {
	accountID = normalize(accountID)
	if accountID == "" {
		return ErrEmptyAccount
	}

	e := r.acquire(accountID)
	e.mu.Lock()
	defer e.mu.Unlock()

	apply(e.state, update)
	return fn(e.state)
}

// View 在持有账户锁的情况下只读访问状态，账户不存在时返回 false。
func (r *Registry) View(accountID string, fn func(*account.State)) bool {
	r.mu.Lock()
	e, ok := r.sessions[normalize(accountID)]
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
	return true
}

// Len 返回当前会话数。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict 清除超过 ttl 未活跃的会话，返回清除数量。
func (r *Registry) Evict(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.sessions {
		// 正在处理请求的会话跳过
		if !e.mu.TryLock() {
			continue
		}
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
		e.mu.Unlock()
	}

	if evicted > 0 {
		r.logger.Info("清理过期会话", zap.Int("evicted", evicted), zap.Int("remaining", len(r.sessions)))
	}
	return evicted
}

func (r *Registry) acquire(accountID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[accountID]
	if !ok {
		e = &entry{state: account.New(accountID)}
		r.sessions[accountID] = e
		r.logger.Debug("创建会话", zap.String("account", accountID))
	}
	e.lastSeen = r.now()
	return e
}

func apply(state *account.State, u Update) {
	state.Offers = append(state.Offers[:0], u.Offers...)

	state.Holdings = make(map[int]int, len(u.Items))
	for _, item := range u.Items {
		state.Holdings[item.ItemID] += item.Amount
	}

	state.BlockedItems = make(map[int]struct{}, len(u.BlockedItems))
	for _, id := range u.BlockedItems {
		state.BlockedItems[id] = struct{}{}
	}

	state.SellOnly = u.SellOnly
	state.F2POnly = u.F2POnly
	state.SuggestionsPaused = u.Paused
	state.SendGraphData = u.SendGraphData
	state.SkipRequested = u.SkipItem > 0
	state.ItemToSkip = u.SkipItem
}

func normalize(accountID string) string {
	return strings.TrimSpace(accountID)
}

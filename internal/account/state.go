package account

import "time"

const (
	// CoinsItemID 为基础货币。
	CoinsItemID = 995
	// PlatinumTokenItemID 为高面值货币，每枚折合 PlatinumTokenValue 个基础货币。
	PlatinumTokenItemID = 13204
	// PlatinumTokenValue 为高面值货币的固定兑换比例。
	PlatinumTokenValue = 1000
)

// currencyMultipliers 列出可用于购买的货币及其折算系数。
var currencyMultipliers = map[int]int64{
	CoinsItemID:         1,
	PlatinumTokenItemID: PlatinumTokenValue,
}

// OfferStatus 表示挂单栏位状态。
type OfferStatus string

const (
	OfferEmpty     OfferStatus = "empty"
	OfferBuying    OfferStatus = "buy"
	OfferSelling   OfferStatus = "sell"
	OfferCancelled OfferStatus = "cancelled"
)

// Offer 为单个挂单栏位的状态。
type Offer struct {
	Status         OfferStatus `json:"status"`
	ItemID         int         `json:"item_id"`
	Price          int         `json:"price"`
	AmountTotal    int         `json:"amount_total"`
	AmountSpent    int         `json:"amount_spent"`
	AmountTraded   int         `json:"amount_traded"`
	ItemsToCollect int         `json:"items_to_collect"`
	GPToCollect    int         `json:"gp_to_collect"`
	BoxID          int         `json:"box_id"`
	Active         bool        `json:"active"`
}

// InventoryItem 为背包中的物品数量。
type InventoryItem struct {
	ItemID int `json:"item_id"`
	Amount int `json:"amount"`
}

// PricePair 记录建仓时的买入价与预期卖出价。
type PricePair struct {
	BuyPrice     int       `json:"buy_price"`
	SellPrice    int       `json:"sell_price"`
	RememberedAt time.Time `json:"remembered_at"`
}

// State 为单个账户的可变状态。
//
// State 不带锁：同一账户的调用必须由上层串行化。
type State struct {
	AccountID         string
	SellOnly          bool
	F2POnly           bool
	SuggestionsPaused bool
	SkipRequested     bool
	ItemToSkip        int
	SendGraphData     bool
	BlockedItems      map[int]struct{}

	Offers   []Offer
	Holdings map[int]int

	SkippedItems map[int]time.Time
	PriceMemory  map[int]PricePair
}

// New 创建带空映射的账户状态。
func New(accountID string) *State {
	return &State{
		AccountID:    accountID,
		BlockedItems: make(map[int]struct{}),
		Holdings:     make(map[int]int),
		SkippedItems: make(map[int]time.Time),
		PriceMemory:  make(map[int]PricePair),
	}
}

// SpendableValue 返回折算为基础货币后的可用资金。
func (s *State) SpendableValue() int64 {
	var total int64
	for id, multiplier := range currencyMultipliers {
		total += int64(s.Holdings[id]) * multiplier
	}
	return total
}

// EmptySlot 返回第一个空闲栏位的编号。
func (s *State) EmptySlot() (int, bool) {
	for _, offer := range s.Offers {
		if offer.Status == OfferEmpty {
			return offer.BoxID, true
		}
	}
	return 0, false
}

// HasEmptySlot 判断是否存在空闲栏位。
func (s *State) HasEmptySlot() bool {
	_, ok := s.EmptySlot()
	return ok
}

// ActiveOfferItems 返回所有非空栏位上挂单的物品编号。
func (s *State) ActiveOfferItems() map[int]struct{} {
	items := make(map[int]struct{}, len(s.Offers))
	for _, offer := range s.Offers {
		if offer.Status != OfferEmpty {
			items[offer.ItemID] = struct{}{}
		}
	}
	return items
}

// IsBlocked 判断物品是否被用户屏蔽。
func (s *State) IsBlocked(itemID int) bool {
	_, ok := s.BlockedItems[itemID]
	return ok
}

// InCooldown 判断物品是否仍处于跳过冷却期。
func (s *State) InCooldown(itemID int, now time.Time, cooldown time.Duration) bool {
	skippedAt, ok := s.SkippedItems[itemID]
	if !ok {
		return false
	}
	return now.Sub(skippedAt) < cooldown
}

// MarkSkipped 开始物品的冷却期。
func (s *State) MarkSkipped(itemID int, now time.Time) {
	if s.SkippedItems == nil {
		s.SkippedItems = make(map[int]time.Time)
	}
	s.SkippedItems[itemID] = now
}

// Remember 记录新建仓位的价格。
func (s *State) Remember(itemID int, pair PricePair) {
	if s.PriceMemory == nil {
		s.PriceMemory = make(map[int]PricePair)
	}
	s.PriceMemory[itemID] = pair
}

// Forget 清除仓位价格记录。
func (s *State) Forget(itemID int) {
	delete(s.PriceMemory, itemID)
}

// MembersRestricted 判断是否只能交易免费物品。
func (s *State) MembersRestricted() bool {
	return s.F2POnly
}

// PruneSkips 清理已过冷却期的记录，避免长会话中映射无限增长。
func (s *State) PruneSkips(now time.Time, cooldown time.Duration) {
	for id, at := range s.SkippedItems {
		if now.Sub(at) >= cooldown {
			delete(s.SkippedItems, id)
		}
	}
}

// PrunePriceMemory 清理超过 ttl 仍未成交的价格记录：既无持仓也无对应挂单。
func (s *State) PrunePriceMemory(now time.Time, ttl time.Duration) int {
	if ttl <= 0 || len(s.PriceMemory) == 0 {
		return 0
	}

	active := s.ActiveOfferItems()
	pruned := 0
	for id, pair := range s.PriceMemory {
		if s.Holdings[id] > 0 {
			continue
		}
		if _, ok := active[id]; ok {
			continue
		}
		if now.Sub(pair.RememberedAt) >= ttl {
			delete(s.PriceMemory, id)
			pruned++
		}
	}
	return pruned
}

package strategy

import (
	"sort"
	"time"

	"flip-advisor/internal/config"
)

// Policy 为选品过滤与打分的可调参数。
type Policy struct {
	SkipCooldown     time.Duration
	MinProfitPerItem int
	MinROI           float64
	MinTotalVolume   int
	MarketTaxRate    float64
	PriceMemoryTTL   time.Duration
}

// DefaultPolicy 返回默认策略参数。
func DefaultPolicy() Policy {
	return Policy{
		SkipCooldown:     600 * time.Second,
		MinProfitPerItem: 3,
		MinROI:           0.0005,
		MinTotalVolume:   50,
		MarketTaxRate:    0.02,
		PriceMemoryTTL:   2 * time.Hour,
	}
}

// PolicyFromConfig 由配置构造策略参数。
func PolicyFromConfig(cfg config.StrategyConfig) Policy {
	return Policy{
		SkipCooldown:     cfg.SkipCooldown,
		MinProfitPerItem: cfg.MinProfitPerItem,
		MinROI:           cfg.MinROI,
		MinTotalVolume:   cfg.MinTotalVolume,
		MarketTaxRate:    cfg.MarketTaxRate,
		PriceMemoryTTL:   cfg.PriceMemoryTTL,
	}
}

// RejectReason 标识候选被淘汰的原因，每个物品至多计入一个原因。
type RejectReason string

const (
	RejectBlocked         RejectReason = "blocked"
	RejectActiveOffer     RejectReason = "active_offer"
	RejectRecentlySkipped RejectReason = "recently_skipped"
	RejectMissingPrices   RejectReason = "missing_prices"
	RejectLowVolume       RejectReason = "low_volume"
	RejectNoMetadata      RejectReason = "no_metadata"
	RejectMembersOnly     RejectReason = "members_only"
	RejectNotAffordable   RejectReason = "not_affordable"
	RejectLowMargin       RejectReason = "low_margin"
	RejectLowROI          RejectReason = "low_roi"
)

// Tally 统计各淘汰原因的次数，仅用于观测。
type Tally map[RejectReason]int

// Count 累加一次淘汰。
func (t Tally) Count(reason RejectReason) {
	t[reason]++
}

// Total 返回淘汰总数。
func (t Tally) Total() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}

// TallyEntry 为排序后的统计项。
type TallyEntry struct {
	Reason RejectReason `json:"reason"`
	Count  int          `json:"count"`
}

// Sorted 按次数降序返回统计项，次数相同按原因名排序。
func (t Tally) Sorted() []TallyEntry {
	entries := make([]TallyEntry, 0, len(t))
	for reason, n := range t {
		entries = append(entries, TallyEntry{Reason: reason, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Reason < entries[j].Reason
	})
	return entries
}

// Candidate 为通过全部过滤的买入机会。
type Candidate struct {
	ItemID        int     `json:"item_id"`
	Name          string  `json:"name"`
	BuyPrice      int     `json:"buy_price"`
	SellPrice     int     `json:"sell_price"`
	ProfitPerUnit int     `json:"profit_per_unit"`
	ROI           float64 `json:"roi"`
	Limit         int     `json:"limit"`
	Volume        int     `json:"volume"`
	Score         float64 `json:"score"`
}

// Ranking 为一次全目录评估的结果。
type Ranking struct {
	Best      *Candidate `json:"best,omitempty"`
	Evaluated int        `json:"evaluated"`
	Qualified int        `json:"qualified"`
	Tally     Tally      `json:"tally"`
}

// SellCandidate 为可平仓的持仓。
type SellCandidate struct {
	ItemID        int     `json:"item_id"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	Price         int     `json:"price"`
	EntryPrice    int     `json:"entry_price"`
	ProfitPerUnit int     `json:"profit_per_unit"`
	ROI           float64 `json:"roi"`
}

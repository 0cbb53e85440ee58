package strategy

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"flip-advisor/internal/account"
	"flip-advisor/internal/market"
)

// Scorer 对全目录物品做过滤与打分，选出唯一的最佳买入机会。
type Scorer struct {
	policy Policy
	keep   decimal.Decimal
	logger *zap.Logger
}

// NewScorer 创建打分器。
func NewScorer(policy Policy, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		policy: policy,
		keep:   decimal.NewFromInt(1).Sub(decimal.NewFromFloat(policy.MarketTaxRate)),
		logger: logger,
	}
}

// Policy 返回当前策略参数。
func (s *Scorer) Policy() Policy {
	return s.policy
}

// NetProfit 返回扣除交易税后每件的利润：floor(sell*(1-tax)) - buy。
func (s *Scorer) NetProfit(sellPrice, buyPrice int) int {
	afterTax := decimal.NewFromInt(int64(sellPrice)).Mul(s.keep).Floor().IntPart()
	return int(afterTax) - buyPrice
}

// Rank 按固定顺序过滤快照中的每个物品并返回得分最高的候选。
// 物品按编号升序评估，得分相同时编号最小者胜出。过滤淘汰不修改账户状态。
func (s *Scorer) Rank(snap *market.Snapshot, state *account.State, now time.Time) Ranking {
	ranking := Ranking{Tally: make(Tally)}
	if snap == nil || state == nil {
		return ranking
	}

	spendable := state.SpendableValue()
	active := state.ActiveOfferItems()

	for _, id := range sortedIDs(snap.Stats) {
		ranking.Evaluated++
		candidate, reason := s.evaluate(id, snap, state, active, spendable, now)
		if candidate == nil {
			ranking.Tally.Count(reason)
			continue
		}

		ranking.Qualified++
		if ranking.Best == nil || candidate.Score > ranking.Best.Score {
			ranking.Best = candidate
		}
	}

	fields := []zap.Field{
		zap.String("account", state.AccountID),
		zap.Int("evaluated", ranking.Evaluated),
		zap.Int("qualified", ranking.Qualified),
		zap.Int("rejected", ranking.Tally.Total()),
	}
	for _, entry := range ranking.Tally.Sorted() {
		fields = append(fields, zap.Int("reject_"+string(entry.Reason), entry.Count))
	}
	s.logger.Debug("选品评估完成", fields...)

	if best := ranking.Best; best != nil {
		s.logger.Debug("最佳买入机会",
			zap.Int("item_id", best.ItemID),
			zap.String("name", best.Name),
			zap.Int("buy_price", best.BuyPrice),
			zap.Int("sell_price", best.SellPrice),
			zap.Int("margin", best.ProfitPerUnit),
			zap.Float64("roi", best.ROI),
			zap.Float64("score", best.Score),
		)
	}

	return ranking
}

func (s *Scorer) evaluate(id int, snap *market.Snapshot, state *account.State, active map[int]struct{}, spendable int64, now time.Time) (*Candidate, RejectReason) {
	if state.IsBlocked(id) {
		return nil, RejectBlocked
	}
	if _, ok := active[id]; ok {
		return nil, RejectActiveOffer
	}
	if state.InCooldown(id, now, s.policy.SkipCooldown) {
		return nil, RejectRecentlySkipped
	}

	stat := snap.Stats[id]
	buyPrice, okBuy := stat.BuyPrice()
	sellPrice, okSell := stat.SellPrice()
	if !okBuy || !okSell {
		return nil, RejectMissingPrices
	}

	volume := stat.TotalVolume()
	if volume < s.policy.MinTotalVolume {
		return nil, RejectLowVolume
	}

	meta, ok := snap.Metadata[id]
	if !ok {
		return nil, RejectNoMetadata
	}
	if meta.Members && state.MembersRestricted() {
		return nil, RejectMembersOnly
	}

	if spendable < int64(buyPrice) {
		return nil, RejectNotAffordable
	}

	profit := s.NetProfit(sellPrice, buyPrice)
	if profit < s.policy.MinProfitPerItem {
		return nil, RejectLowMargin
	}

	roi := float64(profit) / float64(buyPrice)
	if roi < s.policy.MinROI {
		return nil, RejectLowROI
	}

	return &Candidate{
		ItemID:        id,
		Name:          meta.Name,
		BuyPrice:      buyPrice,
		SellPrice:     sellPrice,
		ProfitPerUnit: profit,
		ROI:           roi,
		Limit:         meta.Limit,
		Volume:        volume,
		Score:         score(roi, volume, profit),
	}, ""
}

// score 为 ROI、流动性、单件利润的线性加权。
func score(roi float64, volume, profit int) float64 {
	return roi*1000 + float64(volume)/1000 + float64(profit)/5
}

// EvaluateSell 检查价格记忆中的持仓，返回当前卖价足以覆盖建仓价与门槛的最佳平仓机会。
// 按 ROI 取最大，相同时编号最小者胜出。
func (s *Scorer) EvaluateSell(snap *market.Snapshot, state *account.State) *SellCandidate {
	if snap == nil || state == nil || len(state.PriceMemory) == 0 {
		return nil
	}

	var best *SellCandidate
	for _, id := range sortedIDs(state.PriceMemory) {
		quantity := state.Holdings[id]
		if quantity <= 0 {
			continue
		}

		entry := state.PriceMemory[id]
		if entry.BuyPrice <= 0 {
			continue
		}

		sellPrice, ok := snap.Stats[id].SellPrice()
		if !ok {
			continue
		}

		profit := s.NetProfit(sellPrice, entry.BuyPrice)
		if profit < s.policy.MinProfitPerItem {
			continue
		}
		roi := float64(profit) / float64(entry.BuyPrice)
		if roi < s.policy.MinROI {
			continue
		}

		if best == nil || roi > best.ROI {
			best = &SellCandidate{
				ItemID:        id,
				Name:          snap.Metadata[id].Name,
				Quantity:      quantity,
				Price:         sellPrice,
				EntryPrice:    entry.BuyPrice,
				ProfitPerUnit: profit,
				ROI:           roi,
			}
		}
	}

	return best
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

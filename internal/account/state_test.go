package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpendableValue_ConvertsTokens(t *testing.T) {
	s := New("tester")
	s.Holdings[CoinsItemID] = 2500
	s.Holdings[PlatinumTokenItemID] = 3
	s.Holdings[4151] = 1

	assert.Equal(t, int64(5500), s.SpendableValue())
}

func TestEmptySlot_ReturnsFirstEmptyBox(t *testing.T) {
	s := New("tester")
	s.Offers = []Offer{
		{Status: OfferBuying, BoxID: 0},
		{Status: OfferEmpty, BoxID: 1},
		{Status: OfferEmpty, BoxID: 2},
	}

	box, ok := s.EmptySlot()
	assert.True(t, ok)
	assert.Equal(t, 1, box)

	s.Offers[1].Status = OfferSelling
	s.Offers[2].Status = OfferSelling
	assert.False(t, s.HasEmptySlot())
}

func TestCooldown_Lifecycle(t *testing.T) {
	s := New("tester")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 10 * time.Minute

	assert.False(t, s.InCooldown(2, now, cooldown))

	s.MarkSkipped(2, now)
	assert.True(t, s.InCooldown(2, now.Add(9*time.Minute), cooldown))
	assert.False(t, s.InCooldown(2, now.Add(10*time.Minute), cooldown))

	s.PruneSkips(now.Add(11*time.Minute), cooldown)
	assert.Empty(t, s.SkippedItems)
}

func TestPriceMemory_RememberForget(t *testing.T) {
	var s State
	s.Remember(2, PricePair{BuyPrice: 180, SellPrice: 190})
	assert.Equal(t, PricePair{BuyPrice: 180, SellPrice: 190}, s.PriceMemory[2])

	s.Forget(2)
	assert.NotContains(t, s.PriceMemory, 2)
}

func TestActiveOfferItems_IgnoresEmptySlots(t *testing.T) {
	s := New("tester")
	s.Offers = []Offer{
		{Status: OfferBuying, ItemID: 1, BoxID: 0},
		{Status: OfferEmpty, ItemID: 0, BoxID: 1},
		{Status: OfferCancelled, ItemID: 7, BoxID: 2},
	}

	assert.Equal(t, map[int]struct{}{1: {}, 7: {}}, s.ActiveOfferItems())
}

func TestPrunePriceMemory_DropsStaleUnfilledEntries(t *testing.T) {
	s := New("tester")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour
	stale := now.Add(-2 * time.Hour)

	s.Remember(1, PricePair{BuyPrice: 100, SellPrice: 110, RememberedAt: stale}) // 未成交
	s.Remember(2, PricePair{BuyPrice: 100, SellPrice: 110, RememberedAt: stale}) // 已持有
	s.Remember(3, PricePair{BuyPrice: 100, SellPrice: 110, RememberedAt: stale}) // 仍在挂单
	s.Remember(4, PricePair{BuyPrice: 100, SellPrice: 110, RememberedAt: now.Add(-time.Minute)})
	s.Holdings[2] = 10
	s.Offers = []Offer{{Status: OfferBuying, ItemID: 3}}

	assert.Zero(t, s.PrunePriceMemory(now, 0))
	assert.Equal(t, 1, s.PrunePriceMemory(now, ttl))
	assert.NotContains(t, s.PriceMemory, 1)
	assert.Contains(t, s.PriceMemory, 2)
	assert.Contains(t, s.PriceMemory, 3)
	assert.Contains(t, s.PriceMemory, 4)
}

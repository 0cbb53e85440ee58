package suggestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flip-advisor/internal/account"
	"flip-advisor/internal/market"
	"flip-advisor/internal/strategy"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type staticSource struct {
	snap  *market.Snapshot
	err   error
	calls int
}

func (s *staticSource) Get(context.Context) (*market.Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

type capturingRecorder struct {
	mu       sync.Mutex
	accounts []string
	emitted  []Suggestion
	rankings []*strategy.Ranking
}

func (r *capturingRecorder) RecordSuggestion(_ context.Context, accountID string, s Suggestion, ranking *strategy.Ranking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, accountID)
	r.emitted = append(r.emitted, s)
	r.rankings = append(r.rankings, ranking)
}

func intPtr(v int) *int { return &v }

func stat(buy, sell, volume int) market.PriceStat {
	return market.PriceStat{
		AvgLowPrice:     intPtr(buy),
		AvgHighPrice:    intPtr(sell),
		LowPriceVolume:  intPtr(volume / 2),
		HighPriceVolume: intPtr(volume - volume/2),
	}
}

func referenceSnapshot() *market.Snapshot {
	return &market.Snapshot{
		Metadata:  map[int]market.ItemMetadata{1: {ID: 1, Name: "Test item", Limit: 1000}},
		Stats:     map[int]market.PriceStat{1: stat(100, 110, 1000)},
		FetchedAt: testNow,
	}
}

func newAccount(coins int) *account.State {
	s := account.New("tester")
	s.Holdings[account.CoinsItemID] = coins
	s.Offers = []account.Offer{
		{Status: account.OfferBuying, BoxID: 0},
		{Status: account.OfferEmpty, BoxID: 1},
	}
	return s
}

func newTestEngine(t *testing.T, source SnapshotSource, recorder Recorder) *Engine {
	t.Helper()
	engine, err := NewEngine(source, strategy.NewScorer(strategy.DefaultPolicy(), nil), recorder, nil)
	require.NoError(t, err)
	engine.now = func() time.Time { return testNow }
	return engine
}

func TestGenerate_BuysReferenceItem(t *testing.T) {
	recorder := &capturingRecorder{}
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, recorder)
	state := newAccount(10000)

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, TypeBuy, s.Type)
	assert.Equal(t, 1, s.BoxID)
	assert.Equal(t, 1, s.ItemID)
	assert.Equal(t, 100, s.Price)
	assert.Equal(t, 100, s.Quantity)
	assert.Equal(t, "Test item", s.Name)
	assert.Equal(t, "Margin: 7 gp", s.Message)
	assert.Equal(t, testNow.Unix(), s.CommandID)
	assert.Equal(t, GraphData{}, s.Graph)

	assert.Equal(t, account.PricePair{BuyPrice: 100, SellPrice: 110, RememberedAt: testNow}, state.PriceMemory[1])
	assert.Empty(t, state.SkippedItems)

	require.Len(t, recorder.emitted, 1)
	assert.Equal(t, "tester", recorder.accounts[0])
	require.NotNil(t, recorder.rankings[0])
	assert.Equal(t, 1, recorder.rankings[0].Qualified)
}

func TestGenerate_SizeLimitedByCatalogLimit(t *testing.T) {
	snap := referenceSnapshot()
	snap.Metadata[1] = market.ItemMetadata{ID: 1, Name: "Test item", Limit: 40}
	engine := newTestEngine(t, &staticSource{snap: snap}, nil)

	s, err := engine.Generate(context.Background(), newAccount(10000))
	require.NoError(t, err)
	assert.Equal(t, TypeBuy, s.Type)
	assert.Equal(t, 40, s.Quantity)
}

func TestGenerate_PlatinumTokensCountTowardsSizing(t *testing.T) {
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, nil)
	state := newAccount(0)
	state.Holdings[account.PlatinumTokenItemID] = 5

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, TypeBuy, s.Type)
	assert.Equal(t, 50, s.Quantity)
}

func TestGenerate_CooldownYieldsWait(t *testing.T) {
	recorder := &capturingRecorder{}
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, recorder)
	state := newAccount(10000)
	state.MarkSkipped(1, testNow.Add(-100*time.Second))

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)

	assert.True(t, s.IsWait())
	assert.Equal(t, -1, s.ItemID)
	assert.Equal(t, -1, s.BoxID)
	assert.Empty(t, state.PriceMemory)

	ranking := recorder.rankings[0]
	require.NotNil(t, ranking)
	assert.Nil(t, ranking.Best)
	assert.Equal(t, 1, ranking.Tally[strategy.RejectRecentlySkipped])
}

func TestGenerate_LowMarginYieldsWait(t *testing.T) {
	snap := referenceSnapshot()
	snap.Stats[1] = stat(100, 102, 1000)
	recorder := &capturingRecorder{}
	engine := newTestEngine(t, &staticSource{snap: snap}, recorder)

	s, err := engine.Generate(context.Background(), newAccount(10000))
	require.NoError(t, err)

	assert.True(t, s.IsWait())
	assert.Equal(t, msgWaiting, s.Message)
	assert.Equal(t, 1, recorder.rankings[0].Tally[strategy.RejectLowMargin])
}

func TestGenerate_ZeroQuantityStartsCooldown(t *testing.T) {
	snap := referenceSnapshot()
	snap.Metadata[1] = market.ItemMetadata{ID: 1, Name: "Test item", Limit: 0}
	engine := newTestEngine(t, &staticSource{snap: snap}, nil)
	state := newAccount(10000)

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)

	assert.True(t, s.IsWait())
	assert.Equal(t, testNow, state.SkippedItems[1])
	assert.Empty(t, state.PriceMemory)
}

func TestGenerate_NoEmptySlotSkipsMarketData(t *testing.T) {
	source := &staticSource{snap: referenceSnapshot()}
	engine := newTestEngine(t, source, nil)
	state := newAccount(10000)
	state.Offers[1].Status = account.OfferSelling

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)

	assert.True(t, s.IsWait())
	assert.Equal(t, msgNoSlot, s.Message)
	assert.Zero(t, source.calls)
}

func TestGenerate_PausedYieldsWait(t *testing.T) {
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, nil)
	state := newAccount(10000)
	state.SuggestionsPaused = true

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, s.IsWait())
	assert.Equal(t, msgPaused, s.Message)
}

func TestGenerate_SkipRequestStartsCooldown(t *testing.T) {
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, nil)
	state := newAccount(10000)
	state.SkipRequested = true
	state.ItemToSkip = 1

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)

	assert.True(t, s.IsWait())
	assert.Equal(t, testNow, state.SkippedItems[1])
	assert.False(t, state.SkipRequested)
}

func TestGenerate_SellOnlyWaitsWithoutPositions(t *testing.T) {
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, nil)
	state := newAccount(10000)
	state.SellOnly = true

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, s.IsWait())
	assert.Equal(t, msgSellOnly, s.Message)
	assert.Empty(t, state.PriceMemory)
}

func TestGenerate_SellsHeldPositionFirst(t *testing.T) {
	snap := referenceSnapshot()
	snap.Metadata[2] = market.ItemMetadata{ID: 2, Name: "Held item", Limit: 100}
	snap.Stats[2] = stat(100, 120, 1000)
	engine := newTestEngine(t, &staticSource{snap: snap}, nil)

	state := newAccount(10000)
	state.SellOnly = true
	state.SendGraphData = true
	state.Holdings[2] = 25
	state.Remember(2, account.PricePair{BuyPrice: 100, SellPrice: 110})

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, TypeSell, s.Type)
	assert.Equal(t, 1, s.BoxID)
	assert.Equal(t, 2, s.ItemID)
	assert.Equal(t, 120, s.Price)
	assert.Equal(t, 25, s.Quantity)
	assert.Equal(t, "Margin: 17 gp", s.Message)
	assert.Equal(t, GraphData{ItemID: 2, Name: "Held item", BuyPrice: 100, SellPrice: 120, DailyVolume: 1000}, s.Graph)
	assert.NotContains(t, state.PriceMemory, 2)
}

func TestGenerate_TieIsDeterministic(t *testing.T) {
	snap := &market.Snapshot{
		Metadata: map[int]market.ItemMetadata{
			300: {ID: 300, Name: "c", Limit: 10},
			7:   {ID: 7, Name: "a", Limit: 10},
			45:  {ID: 45, Name: "b", Limit: 10},
		},
		Stats: map[int]market.PriceStat{
			300: stat(100, 110, 1000),
			7:   stat(100, 110, 1000),
			45:  stat(100, 110, 1000),
		},
	}
	engine := newTestEngine(t, &staticSource{snap: snap}, nil)

	for i := 0; i < 20; i++ {
		s, err := engine.Generate(context.Background(), newAccount(10000))
		require.NoError(t, err)
		assert.Equal(t, 7, s.ItemID)
	}
}

func TestGenerate_RoundTripDoesNotRebuy(t *testing.T) {
	recorder := &capturingRecorder{}
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, recorder)
	state := newAccount(10000)
	state.Offers = []account.Offer{
		{Status: account.OfferEmpty, BoxID: 0},
		{Status: account.OfferEmpty, BoxID: 1},
	}

	first, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, TypeBuy, first.Type)
	require.Equal(t, 0, first.BoxID)

	// 客户端已将建议挂单，另一个栏位仍为空
	state.Offers[first.BoxID].Status = account.OfferBuying
	state.Offers[first.BoxID].ItemID = first.ItemID

	second, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, second.IsWait())
	assert.Equal(t, msgWaiting, second.Message)
	assert.Greater(t, second.CommandID, first.CommandID)
	assert.Contains(t, state.PriceMemory, first.ItemID)

	require.Len(t, recorder.rankings, 2)
	require.NotNil(t, recorder.rankings[1])
	assert.Equal(t, 1, recorder.rankings[1].Tally[strategy.RejectActiveOffer])
}

func TestGenerate_PrunesStalePriceMemory(t *testing.T) {
	engine := newTestEngine(t, &staticSource{snap: referenceSnapshot()}, nil)
	state := newAccount(10000)
	state.Remember(77, account.PricePair{BuyPrice: 50, SellPrice: 60, RememberedAt: testNow.Add(-3 * time.Hour)})

	s, err := engine.Generate(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, TypeBuy, s.Type)

	assert.NotContains(t, state.PriceMemory, 77)
	assert.Contains(t, state.PriceMemory, 1)
}

func TestGenerate_MarketDataUnavailable(t *testing.T) {
	cause := errors.Join(market.ErrMarketDataUnavailable, market.ErrUpstreamTimeout)
	recorder := &capturingRecorder{}
	engine := newTestEngine(t, &staticSource{err: cause}, recorder)

	_, err := engine.Generate(context.Background(), newAccount(10000))
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrMarketDataUnavailable)
	assert.Empty(t, recorder.emitted)
}

type failingFeed struct{}

func (failingFeed) FetchCatalog(context.Context) (map[int]market.ItemMetadata, error) {
	return nil, errors.New("connection refused")
}

func (failingFeed) FetchRollingStats(context.Context) (map[int]market.PriceStat, error) {
	return nil, errors.New("connection refused")
}

func TestGenerate_FirstRefreshFailureThroughCache(t *testing.T) {
	cache := market.NewSnapshotCache(failingFeed{}, market.CacheConfig{}, nil)
	engine := newTestEngine(t, cache, nil)

	_, err := engine.Generate(context.Background(), newAccount(10000))
	assert.ErrorIs(t, err, market.ErrMarketDataUnavailable)
	assert.ErrorIs(t, err, market.ErrUpstream)
}

func TestNextCommandID_IsStrictlyIncreasing(t *testing.T) {
	engine := newTestEngine(t, &staticSource{}, nil)

	a := engine.nextCommandID(testNow)
	b := engine.nextCommandID(testNow)
	c := engine.nextCommandID(testNow.Add(-time.Hour))
	d := engine.nextCommandID(testNow.Add(time.Hour))

	assert.Equal(t, testNow.Unix(), a)
	assert.Equal(t, a+1, b)
	assert.Equal(t, b+1, c)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), d)
}

func TestNewEngine_RequiresDependencies(t *testing.T) {
	_, err := NewEngine(nil, strategy.NewScorer(strategy.DefaultPolicy(), nil), nil, nil)
	assert.Error(t, err)

	_, err = NewEngine(&staticSource{}, nil, nil, nil)
	assert.Error(t, err)
}

package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flip-advisor/internal/config"
	"flip-advisor/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	history, err := NewStore(context.Background(), st, nil)
	require.NoError(t, err)
	return history
}

func TestSummarize_EmptyAccount(t *testing.T) {
	history := newTestStore(t)

	summary, err := history.Summarize(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
}

func TestAppendAndSummarize(t *testing.T) {
	ctx := context.Background()
	history := newTestStore(t)

	for _, trade := range []Trade{
		{ItemID: 1, Type: "sell", Price: 110, Quantity: 100, Profit: 700},
		{ItemID: 2, Type: "sell", Price: 50, Quantity: 10, Profit: -30},
		{ItemID: 3, Type: "buy", Price: 20, Quantity: 5},
	} {
		inserted, err := history.Append(ctx, "Zezima", trade)
		require.NoError(t, err)
		assert.True(t, inserted)
	}
	_, err := history.Append(ctx, "Other", Trade{ItemID: 9, Profit: 5000})
	require.NoError(t, err)

	summary, err := history.Summarize(ctx, "Zezima")
	require.NoError(t, err)
	assert.Equal(t, Summary{TotalProfit: 670, TradeCount: 3}, summary)
}

func TestAppend_DuplicateIDIgnored(t *testing.T) {
	ctx := context.Background()
	history := newTestStore(t)
	id := uuid.NewString()

	inserted, err := history.Append(ctx, "Zezima", Trade{ID: id, ItemID: 1, Profit: 10})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = history.Append(ctx, "Zezima", Trade{ID: id, ItemID: 1, Profit: 10})
	require.NoError(t, err)
	assert.False(t, inserted)

	summary, err := history.Summarize(ctx, "Zezima")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TradeCount)
}

func TestAppend_RejectsEmptyAccount(t *testing.T) {
	history := newTestStore(t)
	_, err := history.Append(context.Background(), " ", Trade{})
	assert.ErrorIs(t, err, ErrEmptyAccount)
}

func TestRecent_NewestFirst(t *testing.T) {
	ctx := context.Background()
	history := newTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := history.Append(ctx, "Zezima", Trade{
			ItemID:     i + 1,
			Type:       "sell",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	trades, err := history.Recent(ctx, "Zezima", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, 3, trades[0].ItemID)
	assert.Equal(t, 2, trades[1].ItemID)
	assert.Equal(t, base.Add(2*time.Minute), trades[0].OccurredAt)
	_, err = uuid.Parse(trades[0].ID)
	assert.NoError(t, err)
}

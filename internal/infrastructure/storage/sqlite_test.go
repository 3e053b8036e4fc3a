package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/storage"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeBars(base time.Time, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Time: base.Add(time.Duration(i) * 5 * time.Minute),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
		}
	}
	return bars
}

func TestUpsertBars_Idempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	bars := makeBars(base, 100, 101, 102)
	require.NoError(t, store.UpsertBars(ctx, "BTC/USD", "5Min", bars))

	// Re-sync the same window with a revised last close.
	bars[2].Close = 103
	require.NoError(t, store.UpsertBars(ctx, "BTC/USD", "5Min", bars))

	got, err := store.GetBars(ctx, "BTC/USD", "5Min", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3, "upserting the same timestamps must not duplicate rows")
	assert.Equal(t, 103.0, got[2].Close, "conflicting rows take the newest values")
}

func TestGetBars_FiltersBySymbolTimeframeAndRange(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertBars(ctx, "BTC/USD", "5Min", makeBars(base, 100, 101, 102)))
	require.NoError(t, store.UpsertBars(ctx, "ETH/USD", "5Min", makeBars(base, 50)))
	require.NoError(t, store.UpsertBars(ctx, "BTC/USD", "1Hour", makeBars(base, 999)))

	got, err := store.GetBars(ctx, "BTC/USD", "5Min", base, base.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Time.Before(got[1].Time), "bars come back ascending")

	none, err := store.GetBars(ctx, "BTC/USD", "5Min", base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTrades_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveTrade(ctx, domain.TradeRecord{
		ID: "01A", Symbol: "BTC/USD", Action: "BUY", Price: 50000,
		Qty: domain.QuantityOf(0.004), At: at,
	}))
	require.NoError(t, store.SaveTrade(ctx, domain.TradeRecord{
		ID: "01B", Symbol: "BTC/USD", Action: "CLOSE (TAKE_PROFIT)", Price: 53000,
		Qty: domain.EntirePosition(), RealizedPnL: 12, At: at.Add(time.Hour),
	}))

	trades, err := store.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "01B", trades[0].ID, "newest trade first")
	assert.True(t, trades[0].Qty.EntirePosition)
	assert.Equal(t, 12.0, trades[0].RealizedPnL)
	assert.Equal(t, 0.004, trades[1].Qty.Amount)

	one, err := store.ListTrades(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

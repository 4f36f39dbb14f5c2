package pricecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coinvest/src/models"
)

// -----------------------------------------------------------------------------

func newTestCache(ttl time.Duration, at time.Time) (*MemoryCache, *time.Time) {
	clock := at
	c := NewMemoryCache(ttl)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func record(symbol string, price float64) models.MPriceRecord {
	return models.MPriceRecord{
		Symbol:    symbol,
		Name:      symbol,
		Price:     price,
		Timestamp: time.Now().Unix(),
	}
}

// -----------------------------------------------------------------------------

func TestMemoryCache_GetMiss(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	_, ok := c.Get("BTC")
	require.False(t, ok)
	require.Empty(t, c.GetAllFresh())
	require.Empty(t, c.GetAllAny())
}

func TestMemoryCache_FreshWithinTTL(t *testing.T) {
	start := time.Now()
	c, clock := newTestCache(time.Minute, start)

	c.Put(record("BTC", 50000), start)

	*clock = start.Add(59 * time.Second)

	rec, ok := c.Get("BTC")
	require.True(t, ok)
	require.Equal(t, 50000.0, rec.Price)

	fresh := c.GetAllFresh()
	require.Len(t, fresh, 1)
	require.Equal(t, "BTC", fresh[0].Symbol)
}

func TestMemoryCache_ExpiredExcludedFromFresh(t *testing.T) {
	start := time.Now()
	c, clock := newTestCache(time.Minute, start)

	c.Put(record("BTC", 50000), start)
	c.Put(record("ETH", 2000), start.Add(30*time.Second))

	// BTC is past its TTL, ETH is not.
	*clock = start.Add(61 * time.Second)

	fresh := c.GetAllFresh()
	require.Len(t, fresh, 1)
	require.Equal(t, "ETH", fresh[0].Symbol)

	// Expired entries stay readable through Get and GetAllAny.
	rec, ok := c.Get("BTC")
	require.True(t, ok)
	require.Equal(t, 50000.0, rec.Price)

	all := c.GetAllAny()
	require.Len(t, all, 2)
	require.Equal(t, "BTC", all[0].Symbol)
	require.Equal(t, "ETH", all[1].Symbol)
}

func TestMemoryCache_PutReplacesWhole(t *testing.T) {
	start := time.Now()
	c, clock := newTestCache(time.Minute, start)

	c.Put(record("BTC", 50000), start)

	*clock = start.Add(2 * time.Minute)
	require.Empty(t, c.GetAllFresh())

	// A new observation resets the expiry from its own observedAt.
	c.Put(record("BTC", 51000), *clock)

	fresh := c.GetAllFresh()
	require.Len(t, fresh, 1)
	require.Equal(t, 51000.0, fresh[0].Price)
}

func TestMemoryCache_SortedBySymbol(t *testing.T) {
	start := time.Now()
	c, _ := newTestCache(time.Minute, start)

	c.Put(record("ETH", 2000), start)
	c.Put(record("BNB", 300), start)
	c.Put(record("BTC", 50000), start)

	fresh := c.GetAllFresh()
	require.Len(t, fresh, 3)
	require.Equal(t, "BNB", fresh[0].Symbol)
	require.Equal(t, "BTC", fresh[1].Symbol)
	require.Equal(t, "ETH", fresh[2].Symbol)
}

package pricesource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"coinvest/src/logger"
	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// Fake network
// -----------------------------------------------------------------------------

// fakeNetwork serves canned bodies keyed by the fsyms param (per-symbol APIs)
// or a single body (batched APIs).
type fakeNetwork struct {
	body      []byte
	perSymbol map[string][]byte
	err       error
	requests  []map[string]string
}

func (f *fakeNetwork) Get(ctx context.Context, url string, params, headers map[string]string) ([]byte, error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.perSymbol != nil {
		return f.perSymbol[params["fsyms"]], nil
	}
	return f.body, nil
}

// -----------------------------------------------------------------------------

func feedConfig() *models.MPriceFeedConfig {
	return &models.MPriceFeedConfig{
		TimeoutSeconds: 10,
		Symbols: []models.MSymbolConfig{
			{Symbol: "BTC", DisplayName: "Bitcoin", ProviderID: "bitcoin"},
			{Symbol: "ETH", DisplayName: "Ethereum", ProviderID: "ethereum"},
		},
	}
}

func testLogger() *logger.Logger {
	return logger.NewLogger("ERROR", "test")
}

// -----------------------------------------------------------------------------
// CoinGecko
// -----------------------------------------------------------------------------

func TestCoinGecko_FetchAll(t *testing.T) {
	net := &fakeNetwork{body: []byte(`{
		"bitcoin":  {"usd": 50000, "usd_market_cap": 1e12, "usd_24h_vol": 3e10, "usd_24h_change": 2.5, "last_updated_at": 1700000000},
		"ethereum": {"usd": 2000,  "usd_market_cap": 2e11, "usd_24h_vol": 1e10, "usd_24h_change": -1.0, "last_updated_at": 1700000000}
	}`)}

	src := NewCoinGeckoSource(feedConfig(), net, testLogger())

	records, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "BTC", records[0].Symbol)
	require.Equal(t, "Bitcoin", records[0].Name)
	require.Equal(t, 50000.0, records[0].Price)
	require.Equal(t, 2.5, records[0].ChangePct24h)
	require.Equal(t, int64(1700000000), records[0].Timestamp)

	// One batched request for the whole universe.
	require.Len(t, net.requests, 1)
	require.Equal(t, "bitcoin,ethereum", net.requests[0]["ids"])
}

func TestCoinGecko_MissingInstrumentSkipped(t *testing.T) {
	net := &fakeNetwork{body: []byte(`{"bitcoin": {"usd": 50000}}`)}

	src := NewCoinGeckoSource(feedConfig(), net, testLogger())

	records, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "BTC", records[0].Symbol)
}

func TestCoinGecko_EmptyResponseErrors(t *testing.T) {
	net := &fakeNetwork{body: []byte(`{}`)}

	src := NewCoinGeckoSource(feedConfig(), net, testLogger())

	_, err := src.FetchAll(context.Background())
	require.Error(t, err)
}

func TestCoinGecko_NetworkError(t *testing.T) {
	net := &fakeNetwork{err: errors.New("connection refused")}

	src := NewCoinGeckoSource(feedConfig(), net, testLogger())

	_, err := src.FetchAll(context.Background())
	require.Error(t, err)
}

func TestAbsoluteChange(t *testing.T) {
	// Price rose 25% to 125: the absolute delta is 25.
	require.InDelta(t, 25.0, absoluteChange(125, 25), 1e-9)
	// Flat market.
	require.InDelta(t, 0.0, absoluteChange(100, 0), 1e-9)
	// Degenerate -100% never divides by zero.
	require.Equal(t, 0.0, absoluteChange(0, -100))
}

// -----------------------------------------------------------------------------
// CryptoCompare
// -----------------------------------------------------------------------------

func TestCryptoCompare_FetchAll(t *testing.T) {
	net := &fakeNetwork{perSymbol: map[string][]byte{
		"BTC": []byte(`{"RAW": {"BTC": {"USD": {"PRICE": 50100, "CHANGE24HOUR": 1200, "CHANGEPCT24HOUR": 2.4, "MKTCAP": 1e12, "TOTALVOLUME24HTO": 3e10, "LASTUPDATE": 1700000000}}}}`),
		"ETH": []byte(`{"RAW": {"ETH": {"USD": {"PRICE": 2010, "CHANGE24HOUR": -20, "CHANGEPCT24HOUR": -1.0, "MKTCAP": 2e11, "TOTALVOLUME24HTO": 1e10, "LASTUPDATE": 1700000000}}}}`),
	}}

	src := NewCryptoCompareSource(feedConfig(), net, testLogger())

	records, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "BTC", records[0].Symbol)
	require.Equal(t, 50100.0, records[0].Price)
	require.Equal(t, 1200.0, records[0].Change24h)

	// One request per symbol on the fallback path.
	require.Len(t, net.requests, 2)
}

func TestCryptoCompare_PartialFailureTolerated(t *testing.T) {
	net := &fakeNetwork{perSymbol: map[string][]byte{
		"BTC": []byte(`{"Response": "Error", "Message": "rate limit"}`),
		"ETH": []byte(`{"RAW": {"ETH": {"USD": {"PRICE": 2010}}}}`),
	}}

	src := NewCryptoCompareSource(feedConfig(), net, testLogger())

	records, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "ETH", records[0].Symbol)
}

func TestCryptoCompare_AllSymbolsFail(t *testing.T) {
	net := &fakeNetwork{perSymbol: map[string][]byte{
		"BTC": []byte(`{"Response": "Error", "Message": "rate limit"}`),
		"ETH": []byte(`{"Response": "Error", "Message": "rate limit"}`),
	}}

	src := NewCryptoCompareSource(feedConfig(), net, testLogger())

	_, err := src.FetchAll(context.Background())
	require.Error(t, err)
}

func TestCryptoCompare_CancelledContext(t *testing.T) {
	net := &fakeNetwork{}
	src := NewCryptoCompareSource(feedConfig(), net, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.FetchAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, net.requests)
}

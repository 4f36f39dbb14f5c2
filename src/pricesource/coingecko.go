package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"
)

const coingeckoURL = "https://api.coingecko.com/api/v3/simple/price"

// -----------------------------------------------------------------------------
// CoinGeckoSource (primary provider)
// -----------------------------------------------------------------------------

// CoinGeckoSource fetches the whole instrument universe in one batched
// request. CoinGecko keys the response by its own coin ids, so the configured
// symbol list carries the id mapping.
type CoinGeckoSource struct {
	Symbols []models.MSymbolConfig
	APIKey  string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCoinGeckoSource(cfg *models.MPriceFeedConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *CoinGeckoSource {
	return &CoinGeckoSource{
		Symbols: cfg.Symbols,
		APIKey:  cfg.PrimaryAPIKey,
		Network: netMgr,
		Logger:  log.Named("coingecko"),
	}
}

// -----------------------------------------------------------------------------

func (s *CoinGeckoSource) Name() string {
	return "coingecko"
}

// -----------------------------------------------------------------------------

// geckoQuote is the per-coin shape of the /simple/price response.
// usd_24h_change is a percentage, not an absolute delta.
type geckoQuote struct {
	USD          *float64 `json:"usd"`
	USDMarketCap float64  `json:"usd_market_cap"`
	USD24hVol    float64  `json:"usd_24h_vol"`
	USD24hChange float64  `json:"usd_24h_change"`
	LastUpdated  int64    `json:"last_updated_at"`
}

// -----------------------------------------------------------------------------

// FetchAll requests every supported instrument in a single batched call.
// Instruments missing from the response are omitted from the result.
func (s *CoinGeckoSource) FetchAll(ctx context.Context) ([]models.MPriceRecord, error) {
	ids := make([]string, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		ids = append(ids, sym.ProviderID)
	}

	params := map[string]string{
		"ids":                     strings.Join(ids, ","),
		"vs_currencies":           "usd",
		"include_market_cap":      "true",
		"include_24hr_vol":        "true",
		"include_24hr_change":     "true",
		"include_last_updated_at": "true",
	}

	headers := map[string]string{}
	if s.APIKey != "" {
		headers["x-cg-demo-api-key"] = s.APIKey
	}

	body, err := s.Network.Get(ctx, coingeckoURL, params, headers)
	if err != nil {
		return nil, fmt.Errorf("coingecko request failed: %w", err)
	}

	var resp map[string]geckoQuote
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("coingecko unmarshal failed: %w", err)
	}

	now := time.Now().Unix()
	records := make([]models.MPriceRecord, 0, len(s.Symbols))

	for _, sym := range s.Symbols {
		quote, ok := resp[sym.ProviderID]
		if !ok || quote.USD == nil {
			s.Logger.Info("Symbol %s missing from response, skipping", sym.Symbol)
			continue
		}

		price := *quote.USD
		ts := quote.LastUpdated
		if ts == 0 {
			ts = now
		}

		records = append(records, models.MPriceRecord{
			Symbol:       sym.Symbol,
			Name:         sym.DisplayName,
			Price:        price,
			Change24h:    absoluteChange(price, quote.USD24hChange),
			ChangePct24h: quote.USD24hChange,
			MarketCap:    quote.USDMarketCap,
			Volume24h:    quote.USD24hVol,
			Timestamp:    ts,
		})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("coingecko returned no usable instruments")
	}

	return records, nil
}

// -----------------------------------------------------------------------------

// absoluteChange derives the 24h absolute delta from the percent change the
// provider reports.
func absoluteChange(price, pct float64) float64 {
	denom := 1 + pct/100
	if denom == 0 {
		return 0
	}
	prev := price / denom
	return price - prev
}

package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"
)

const cryptocompareURL = "https://min-api.cryptocompare.com/data/pricemultifull"

// -----------------------------------------------------------------------------
// CryptoCompareSource (secondary provider)
// -----------------------------------------------------------------------------

// CryptoCompareSource is the fallback provider. It is queried one symbol per
// call, which is the accepted degraded behavior of the fallback path.
type CryptoCompareSource struct {
	Symbols []models.MSymbolConfig
	APIKey  string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCryptoCompareSource(cfg *models.MPriceFeedConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *CryptoCompareSource {
	return &CryptoCompareSource{
		Symbols: cfg.Symbols,
		APIKey:  cfg.SecondaryAPIKey,
		Network: netMgr,
		Logger:  log.Named("cryptocompare"),
	}
}

// -----------------------------------------------------------------------------

func (s *CryptoCompareSource) Name() string {
	return "cryptocompare"
}

// -----------------------------------------------------------------------------

// ccFullResponse is the RAW section of /data/pricemultifull.
type ccFullResponse struct {
	Raw map[string]map[string]struct {
		Price         float64 `json:"PRICE"`
		Change24Hour  float64 `json:"CHANGE24HOUR"`
		ChangePct24H  float64 `json:"CHANGEPCT24HOUR"`
		MarketCap     float64 `json:"MKTCAP"`
		TotalVolume24 float64 `json:"TOTALVOLUME24HTO"`
		LastUpdate    int64   `json:"LASTUPDATE"`
	} `json:"RAW"`
	Response string `json:"Response"`
	Message  string `json:"Message"`
}

// -----------------------------------------------------------------------------

// FetchAll queries one symbol per call. A symbol that fails is omitted; the
// fetch only errors when no symbol could be resolved.
func (s *CryptoCompareSource) FetchAll(ctx context.Context) ([]models.MPriceRecord, error) {
	headers := map[string]string{}
	if s.APIKey != "" {
		headers["authorization"] = "Apikey " + s.APIKey
	}

	now := time.Now().Unix()
	records := make([]models.MPriceRecord, 0, len(s.Symbols))
	var lastErr error

	for _, sym := range s.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params := map[string]string{
			"fsyms": sym.Symbol,
			"tsyms": "USD",
		}

		body, err := s.Network.Get(ctx, cryptocompareURL, params, headers)
		if err != nil {
			s.Logger.Info("Fetch failed for %s: %v", sym.Symbol, err)
			lastErr = err
			continue
		}

		var resp ccFullResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			s.Logger.Info("Unmarshal failed for %s: %v", sym.Symbol, err)
			lastErr = err
			continue
		}

		// CryptoCompare reports errors with status 200 and Response=Error.
		if resp.Response == "Error" {
			s.Logger.Info("API error for %s: %s", sym.Symbol, resp.Message)
			lastErr = fmt.Errorf("cryptocompare: %s", resp.Message)
			continue
		}

		quote, ok := resp.Raw[sym.Symbol]["USD"]
		if !ok {
			s.Logger.Info("Symbol %s missing from response, skipping", sym.Symbol)
			continue
		}

		ts := quote.LastUpdate
		if ts == 0 {
			ts = now
		}

		records = append(records, models.MPriceRecord{
			Symbol:       sym.Symbol,
			Name:         sym.DisplayName,
			Price:        quote.Price,
			Change24h:    quote.Change24Hour,
			ChangePct24h: quote.ChangePct24H,
			MarketCap:    quote.MarketCap,
			Volume24h:    quote.TotalVolume24,
			Timestamp:    ts,
		})
	}

	if len(records) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("all symbols failed: %w", lastErr)
		}
		return nil, fmt.Errorf("cryptocompare returned no usable instruments")
	}

	return records, nil
}

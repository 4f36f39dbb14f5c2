package valuation

import (
	"context"
	"sort"
	"time"

	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// Valuator
// -----------------------------------------------------------------------------

// Valuator prices a user's holdings at current market rates. Valuations are
// computed fresh on every call and never cached; the portfolio tick interval
// controls recompute frequency.
type Valuator struct {
	DB     interfaces.IDatabase
	Cache  interfaces.IPriceCache
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewValuator(db interfaces.IDatabase, cache interfaces.IPriceCache, log *logger.Logger) *Valuator {
	return &Valuator{
		DB:     db,
		Cache:  cache,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Valuate computes the point-in-time valuation for one user. Active
// investments are valued at their full contracted expected return; completed
// ones at their recorded actual return. A currency with no cache entry at all
// values at unit price 0 but stays visible in the breakdown.
func (v *Valuator) Valuate(ctx context.Context, userID string) (models.MPortfolioValuation, error) {
	investments, err := v.DB.InvestmentsForValuation(ctx, userID)
	if err != nil {
		return models.MPortfolioValuation{}, err
	}

	type bucket struct {
		amount float64
		value  float64
		price  float64
	}
	buckets := make(map[string]*bucket)

	var totalInvested, totalValue float64

	for _, inv := range investments {
		unitPrice := 0.0
		if rec, ok := v.Cache.Get(inv.Currency); ok {
			unitPrice = rec.Price
		} else {
			v.Logger.Warning("No price for %s, valuing holding at 0", inv.Currency)
		}

		holding := inv.Amount
		if inv.Status == models.InvestmentCompleted {
			holding += inv.ActualReturn
		} else {
			holding += inv.ExpectedReturn
		}

		invested := inv.Amount * unitPrice
		current := holding * unitPrice

		totalInvested += invested
		totalValue += current

		b, ok := buckets[inv.Currency]
		if !ok {
			b = &bucket{price: unitPrice}
			buckets[inv.Currency] = b
		}
		b.amount += holding
		b.value += current
	}

	breakdown := make([]models.MCurrencyHolding, 0, len(buckets))
	for currency, b := range buckets {
		breakdown = append(breakdown, models.MCurrencyHolding{
			Currency:  currency,
			Amount:    b.amount,
			ValueUSD:  b.value,
			UnitPrice: b.price,
		})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Currency < breakdown[j].Currency
	})

	profit := totalValue - totalInvested
	profitPct := 0.0
	if totalInvested > 0 {
		profitPct = 100 * profit / totalInvested
	}

	return models.MPortfolioValuation{
		UserID:           userID,
		TotalInvested:    totalInvested,
		TotalValue:       totalValue,
		TotalProfit:      profit,
		ProfitPercentage: profitPct,
		Breakdown:        breakdown,
		Timestamp:        time.Now().Unix(),
	}, nil
}

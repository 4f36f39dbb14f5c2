package interfaces

import (
	"context"

	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// IPriceFetcher is the failover-managed fetch consumed by the broadcast
// scheduler (implemented by the price source manager).
// -----------------------------------------------------------------------------

type IPriceFetcher interface {
	FetchAll(ctx context.Context) ([]models.MPriceRecord, error)
}

// -----------------------------------------------------------------------------
// IValuator computes point-in-time portfolio valuations.
// -----------------------------------------------------------------------------

type IValuator interface {
	Valuate(ctx context.Context, userID string) (models.MPortfolioValuation, error)
}

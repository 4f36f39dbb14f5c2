package interfaces

import (
	"context"

	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// IPriceSource fetches current prices from one upstream provider.
// -----------------------------------------------------------------------------

type IPriceSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchAll retrieves current prices for every supported instrument.
	// An instrument missing from the provider response is omitted from the
	// result, not an error. ctx bounds the upstream call; past its deadline
	// the fetch fails.
	FetchAll(ctx context.Context) ([]models.MPriceRecord, error)
}

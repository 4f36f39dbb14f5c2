package interfaces

import (
	"time"

	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// IPriceCache holds the latest known record per symbol with a freshness TTL.
// -----------------------------------------------------------------------------

type IPriceCache interface {

	// Get returns the latest record for symbol regardless of freshness.
	Get(symbol string) (models.MPriceRecord, bool)

	// -----------------------------------------------------------------------------

	// GetAllFresh returns only records whose TTL has not elapsed.
	GetAllFresh() []models.MPriceRecord

	// -----------------------------------------------------------------------------

	// GetAllAny returns every known record, expired or not (fallback reads
	// when upstream providers are down).
	GetAllAny() []models.MPriceRecord

	// -----------------------------------------------------------------------------

	// Put atomically replaces the record and its expiry for rec.Symbol.
	Put(rec models.MPriceRecord, observedAt time.Time)
}

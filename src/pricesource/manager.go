package pricesource

import (
	"context"
	"time"

	"coinvest/src/helpers"
	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// SourceManager
// -----------------------------------------------------------------------------

// SourceManager is the price source adapter: primary provider first, secondary
// on any failure. On success the cache is updated; when both providers fail
// the cache is left untouched so readers keep the last good set.
type SourceManager struct {
	Primary   interfaces.IPriceSource
	Secondary interfaces.IPriceSource
	Cache     interfaces.IPriceCache
	Timeout   time.Duration
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSourceManager(primary, secondary interfaces.IPriceSource, cache interfaces.IPriceCache, timeout time.Duration, log *logger.Logger) *SourceManager {
	return &SourceManager{
		Primary:   primary,
		Secondary: secondary,
		Cache:     cache,
		Timeout:   timeout,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// FetchAll fetches current prices with failover and updates the cache.
// Each provider attempt is bounded by the configured timeout.
func (m *SourceManager) FetchAll(ctx context.Context) ([]models.MPriceRecord, error) {
	records, err := m.fetchFrom(ctx, m.Primary)
	if err != nil {
		m.Logger.Warning("Primary source %s failed: %v. Falling back to %s",
			m.Primary.Name(), err, m.Secondary.Name())

		records, err = m.fetchFrom(ctx, m.Secondary)
		if err != nil {
			m.Logger.Error("Secondary source %s failed: %v", m.Secondary.Name(), err)
			return nil, helpers.UpstreamUnavailable("both price providers failed", err)
		}
	}

	observedAt := time.Now()
	for _, rec := range records {
		m.Cache.Put(rec, observedAt)
	}

	return records, nil
}

// -----------------------------------------------------------------------------

func (m *SourceManager) fetchFrom(ctx context.Context, src interfaces.IPriceSource) ([]models.MPriceRecord, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	return src.FetchAll(fetchCtx)
}

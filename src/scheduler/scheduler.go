package scheduler

import (
	"context"
	"sync"
	"time"

	"coinvest/src/helpers"
	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// Scheduler
// -----------------------------------------------------------------------------

// Scheduler runs the periodic fan-out loops and the synchronous event pushes.
// Price and portfolio loops run on independent cadences; a failure inside one
// iteration is logged and skipped, never aborting the ticker.
type Scheduler struct {
	Registry interfaces.IRegistry
	Fetcher  interfaces.IPriceFetcher
	Cache    interfaces.IPriceCache
	Valuator interfaces.IValuator
	Logger   *logger.Logger

	priceInterval     time.Duration
	portfolioInterval time.Duration

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewScheduler(
	registry interfaces.IRegistry,
	fetcher interfaces.IPriceFetcher,
	cache interfaces.IPriceCache,
	valuator interfaces.IValuator,
	cfg models.MBroadcastConfig,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		Registry:          registry,
		Fetcher:           fetcher,
		Cache:             cache,
		Valuator:          valuator,
		Logger:            log,
		priceInterval:     time.Duration(cfg.PriceIntervalSeconds) * time.Second,
		portfolioInterval: time.Duration(cfg.PortfolioIntervalSeconds) * time.Second,
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start launches the price and portfolio loops. Cancelling the parent context
// or calling Stop shuts both down.
func (s *Scheduler) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelFunc != nil {
		return // already running
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel

	s.wg.Add(2)
	go s.priceLoop(ctx)
	go s.portfolioLoop(ctx)

	s.Logger.Info("Broadcast scheduler started (price %v, portfolio %v)",
		s.priceInterval, s.portfolioInterval)
}

// -----------------------------------------------------------------------------

// Stop cancels the loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.Logger.Info("Broadcast scheduler stopped")
}

// -----------------------------------------------------------------------------
// Price Loop
// -----------------------------------------------------------------------------

func (s *Scheduler) priceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.priceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PriceTick(ctx); err != nil {
				s.Logger.Warning("Price tick failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// PriceTick runs one price fan-out cycle. With zero subscribers it returns
// without touching upstream. On upstream failure the last good cached set is
// served instead; every subscriber in one tick sees the same snapshot.
func (s *Scheduler) PriceTick(ctx context.Context) error {
	if s.Registry.CountSubscribers(models.SubPrices) == 0 {
		return nil
	}

	prices, err := s.Fetcher.FetchAll(ctx)
	if err != nil {
		if !helpers.IsUpstreamUnavailable(err) {
			return err
		}
		prices = s.Cache.GetAllAny()
		if len(prices) == 0 {
			return err
		}
		s.Logger.Warning("Upstream unavailable, serving %d cached prices", len(prices))
	}

	s.Registry.FanoutBySubscription(models.SubPrices, models.MServerMessage{
		Type:      models.MsgPriceUpdate,
		Prices:    prices,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// -----------------------------------------------------------------------------
// Portfolio Loop
// -----------------------------------------------------------------------------

func (s *Scheduler) portfolioLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.portfolioInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PortfolioTick(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// PortfolioTick recomputes and pushes a valuation to every portfolio
// subscriber. The payload is per-user, so this is a targeted send per
// session, not a blanket fan-out. One user's failure is skipped.
func (s *Scheduler) PortfolioTick(ctx context.Context) {
	for _, target := range s.Registry.SubscriptionTargets(models.SubPortfolio) {
		if ctx.Err() != nil {
			return
		}

		valuation, err := s.Valuator.Valuate(ctx, target.UserID)
		if err != nil {
			s.Logger.Warning("Valuation for user %s failed: %v", target.UserID, err)
			continue
		}

		s.Registry.SendTo(target.ConnectionID, models.MServerMessage{
			Type:      models.MsgPortfolioUpdate,
			Valuation: &valuation,
			Timestamp: time.Now().Unix(),
		})
	}
}

// -----------------------------------------------------------------------------

// PortfolioTickFor pushes a fresh valuation to all of one user's portfolio
// subscriptions (admin manual trigger).
func (s *Scheduler) PortfolioTickFor(ctx context.Context, userID string) error {
	valuation, err := s.Valuator.Valuate(ctx, userID)
	if err != nil {
		return err
	}

	msg := models.MServerMessage{
		Type:      models.MsgPortfolioUpdate,
		Valuation: &valuation,
		Timestamp: time.Now().Unix(),
	}
	s.Registry.FanoutByUser(userID, msg)
	return nil
}

// -----------------------------------------------------------------------------
// Event Pushes
// -----------------------------------------------------------------------------
// Synchronous pushes for discrete occurrences, delivered to the owning user
// only. Callers invoke these in event order; delivery into the per-session
// buffers preserves that order for each user.

func (s *Scheduler) InvestmentCreated(inv models.MInvestment) {
	s.Registry.FanoutByUser(inv.UserID, models.MServerMessage{
		Type:       models.MsgInvestmentCreated,
		UserID:     inv.UserID,
		Investment: &inv,
		Timestamp:  time.Now().Unix(),
	})
}

func (s *Scheduler) InvestmentMatured(inv models.MInvestment) {
	s.Registry.FanoutByUser(inv.UserID, models.MServerMessage{
		Type:       models.MsgInvestmentMatured,
		UserID:     inv.UserID,
		Investment: &inv,
		Timestamp:  time.Now().Unix(),
	})
}

func (s *Scheduler) WithdrawalApproved(userID string, w models.MWithdrawalEvent) {
	s.Registry.FanoutByUser(userID, models.MServerMessage{
		Type:       models.MsgWithdrawalApproved,
		UserID:     userID,
		Withdrawal: &w,
		Timestamp:  time.Now().Unix(),
	})
}

func (s *Scheduler) TransactionUpdated(userID string, t models.MTransactionEvent) {
	s.Registry.FanoutByUser(userID, models.MServerMessage{
		Type:        models.MsgTransactionUpdate,
		UserID:      userID,
		Transaction: &t,
		Timestamp:   time.Now().Unix(),
	})
}

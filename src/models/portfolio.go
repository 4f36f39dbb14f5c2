package models

import "time"

// -----------------------------------------------------------------------------
// Investment Statuses
// -----------------------------------------------------------------------------

const (
	InvestmentActive    = "active"
	InvestmentCompleted = "completed"
	InvestmentCancelled = "cancelled"
	InvestmentFailed    = "failed"
)

// -----------------------------------------------------------------------------

// MInvestment is the persisted investment row as read for valuation.
// ExpectedReturn/ActualReturn are absolute amounts in the investment currency.
type MInvestment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	PlanID         string    `json:"plan_id"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	ExpectedReturn float64   `json:"expected_return"`
	ActualReturn   float64   `json:"actual_return"`
	CreatedAt      time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------
// Valuation (computed, never persisted)
// -----------------------------------------------------------------------------

type MCurrencyHolding struct {
	Currency  string  `json:"currency"`
	Amount    float64 `json:"amount"`
	ValueUSD  float64 `json:"value_usd"`
	UnitPrice float64 `json:"unit_price"`
}

type MPortfolioValuation struct {
	UserID           string             `json:"user_id"`
	TotalInvested    float64            `json:"total_invested"`
	TotalValue       float64            `json:"total_value"`
	TotalProfit      float64            `json:"total_profit"`
	ProfitPercentage float64            `json:"profit_percentage"`
	Breakdown        []MCurrencyHolding `json:"breakdown"`
	Timestamp        int64              `json:"timestamp"`
}

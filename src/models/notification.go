package models

import "time"

// -----------------------------------------------------------------------------
// Notification Categories
// -----------------------------------------------------------------------------

const (
	CategoryInvestment  = "investment"
	CategoryWithdrawal  = "withdrawal"
	CategoryTransaction = "transaction"
	CategorySystem      = "system"
	CategoryPromotion   = "promotion"
	CategorySecurity    = "security"
)

// -----------------------------------------------------------------------------

// MNotification is the durable notification record. The live websocket push is
// a side effect; this row is the source of truth and is mutated only by
// read-acknowledgement.
type MNotification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	Read      bool              `json:"read"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// -----------------------------------------------------------------------------

// ValidCategory reports whether c is one of the closed category set.
func ValidCategory(c string) bool {
	switch c {
	case CategoryInvestment, CategoryWithdrawal, CategoryTransaction,
		CategorySystem, CategoryPromotion, CategorySecurity:
		return true
	}
	return false
}

package models

// -----------------------------------------------------------------------------
// Subscription Kinds
// -----------------------------------------------------------------------------

type MSubscriptionKind string

const (
	SubPrices       MSubscriptionKind = "prices"
	SubPortfolio    MSubscriptionKind = "portfolio"
	SubTransactions MSubscriptionKind = "transactions"
)

// RequiresAuth reports whether the kind carries user-scoped data and therefore
// needs an authenticated session.
func (k MSubscriptionKind) RequiresAuth() bool {
	return k == SubPortfolio || k == SubTransactions
}

// -----------------------------------------------------------------------------
// Client -> Server Commands
// -----------------------------------------------------------------------------

const (
	CmdAuthenticate            = "authenticate"
	CmdSubscribePrices         = "subscribe-prices"
	CmdUnsubscribePrices       = "unsubscribe-prices"
	CmdSubscribePortfolio      = "subscribe-portfolio"
	CmdUnsubscribePortfolio    = "unsubscribe-portfolio"
	CmdSubscribeTransactions   = "subscribe-transactions"
	CmdUnsubscribeTransactions = "unsubscribe-transactions"
	CmdJoinRoom                = "join-room"
	CmdLeaveRoom               = "leave-room"
)

type MClientCommand struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Room   string `json:"room,omitempty"`
}

// -----------------------------------------------------------------------------
// Server -> Client Messages
// -----------------------------------------------------------------------------

const (
	MsgAuthenticated      = "authenticated"
	MsgPriceUpdate        = "price-update"
	MsgPortfolioUpdate    = "portfolio-update"
	MsgTransactionUpdate  = "transaction-update"
	MsgInvestmentCreated  = "investment-created"
	MsgInvestmentMatured  = "investment-matured"
	MsgWithdrawalApproved = "withdrawal-approved"
	MsgNotification       = "notification"
	MsgError              = "error"
)

type MErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type MWithdrawalEvent struct {
	WithdrawalID string  `json:"withdrawal_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
}

type MTransactionEvent struct {
	TransactionID string `json:"transaction_id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	TxHash        string `json:"tx_hash,omitempty"`
}

// MServerMessage is the single envelope written to clients. Type selects which
// payload field is set; the set of types is closed so handlers never receive
// an unexpected shape.
type MServerMessage struct {
	Type         string               `json:"type"`
	UserID       string               `json:"user_id,omitempty"`
	Prices       []MPriceRecord       `json:"prices,omitempty"`
	Valuation    *MPortfolioValuation `json:"valuation,omitempty"`
	Notification *MNotification       `json:"notification,omitempty"`
	Investment   *MInvestment         `json:"investment,omitempty"`
	Withdrawal   *MWithdrawalEvent    `json:"withdrawal,omitempty"`
	Transaction  *MTransactionEvent   `json:"transaction,omitempty"`
	Error        *MErrorPayload       `json:"error,omitempty"`
	Timestamp    int64                `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MSubscriberRef identifies one subscribed connection for per-session pushes
// (the portfolio loop computes a distinct payload per user).
type MSubscriberRef struct {
	ConnectionID string
	UserID       string
}

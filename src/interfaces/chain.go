package interfaces

import "context"

// -----------------------------------------------------------------------------
// IChainService is the opaque on-chain collaborator. Request handlers own the
// implementation; the real-time core only sees the discrete events those
// handlers emit into the scheduler and dispatcher.
// -----------------------------------------------------------------------------

type IChainService interface {

	// Invest submits an on-chain investment and returns the transaction hash.
	Invest(ctx context.Context, userID, planID string, amount float64, currency string) (string, error)

	// Withdraw submits an on-chain withdrawal and returns the transaction hash.
	Withdraw(ctx context.Context, userID string, amount float64, currency string) (string, error)

	// BalanceOf returns the on-chain balance for a user in the given currency.
	BalanceOf(ctx context.Context, userID, currency string) (float64, error)
}

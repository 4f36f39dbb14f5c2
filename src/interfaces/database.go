package interfaces

import (
	"context"

	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// InvestmentsForValuation returns the user's investments with status
	// active or completed; terminal failed/cancelled rows are excluded.
	InvestmentsForValuation(ctx context.Context, userID string) ([]models.MInvestment, error)

	// -----------------------------------------------------------------------------

	// SaveNotification persists a notification record and assigns its ID.
	SaveNotification(ctx context.Context, n *models.MNotification) error

	// NotificationsForUser returns the newest notifications for a user.
	NotificationsForUser(ctx context.Context, userID string, limit int) ([]models.MNotification, error)

	// MarkNotificationRead sets the read flag on one notification.
	MarkNotificationRead(ctx context.Context, id string) error

	// MarkAllNotificationsRead sets the read flag on all of a user's notifications.
	MarkAllNotificationsRead(ctx context.Context, userID string) error

	// -----------------------------------------------------------------------------

	// ActiveUserIDs returns ids of all active platform users (broadcast-to-all).
	ActiveUserIDs(ctx context.Context) ([]string, error)

	// -----------------------------------------------------------------------------

	// UserIDForToken resolves an auth token to a user id. Returns an
	// invalid-credential error when the token is unknown or expired.
	UserIDForToken(ctx context.Context, token string) (string, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

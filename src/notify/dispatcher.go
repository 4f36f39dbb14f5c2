package notify

import (
	"context"
	"time"

	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// Dispatcher
// -----------------------------------------------------------------------------

// Dispatcher records durable notifications and routes a live copy to the
// target user's connected sessions. Persistence always happens first; the
// websocket push is best-effort and an offline user reads the record on next
// login.
type Dispatcher struct {
	DB       interfaces.IDatabase
	Registry interfaces.IRegistry
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewDispatcher(db interfaces.IDatabase, registry interfaces.IRegistry, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		DB:       db,
		Registry: registry,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

// Notify persists the notification and then pushes a live copy to the user's
// sessions. A persistence failure is returned and no push happens, so a
// failed save never silently claims success.
func (d *Dispatcher) Notify(ctx context.Context, userID, title, message, category string, payload map[string]string) (*models.MNotification, error) {
	n := &models.MNotification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Category:  category,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	if err := d.DB.SaveNotification(ctx, n); err != nil {
		d.Logger.Error("Failed to persist notification for user %s: %v", userID, err)
		return nil, err
	}

	d.Registry.FanoutByUser(userID, models.MServerMessage{
		Type:         models.MsgNotification,
		UserID:       userID,
		Notification: n,
		Timestamp:    time.Now().Unix(),
	})

	return n, nil
}

// -----------------------------------------------------------------------------

// BroadcastToAll persists one record per active user and performs a single
// registry-wide push. Per-user persistence failures are logged and skipped so
// one bad row does not starve the rest.
func (d *Dispatcher) BroadcastToAll(ctx context.Context, title, message, category string) (int, error) {
	userIDs, err := d.DB.ActiveUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	saved := 0
	for _, userID := range userIDs {
		n := &models.MNotification{
			UserID:    userID,
			Title:     title,
			Message:   message,
			Category:  category,
			CreatedAt: time.Now(),
		}
		if err := d.DB.SaveNotification(ctx, n); err != nil {
			d.Logger.Error("Failed to persist broadcast for user %s: %v", userID, err)
			continue
		}
		saved++
	}

	d.Registry.FanoutAll(models.MServerMessage{
		Type: models.MsgNotification,
		Notification: &models.MNotification{
			Title:     title,
			Message:   message,
			Category:  category,
			CreatedAt: time.Now(),
		},
		Timestamp: time.Now().Unix(),
	})

	return saved, nil
}

// -----------------------------------------------------------------------------
// Read Acknowledgement
// -----------------------------------------------------------------------------
// Mutates only the persisted records; the registry is never involved.

func (d *Dispatcher) MarkRead(ctx context.Context, id string) error {
	return d.DB.MarkNotificationRead(ctx, id)
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) error {
	return d.DB.MarkAllNotificationsRead(ctx, userID)
}

// -----------------------------------------------------------------------------

// NotificationsFor returns the newest persisted notifications for a user.
func (d *Dispatcher) NotificationsFor(ctx context.Context, userID string, limit int) ([]models.MNotification, error) {
	return d.DB.NotificationsForUser(ctx, userID, limit)
}

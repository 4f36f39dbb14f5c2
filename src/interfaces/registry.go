package interfaces

import (
	"context"

	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// IClientSink is the outbound side of one live connection. Send must not
// block: it reports false when the message was dropped (slow consumer).
// -----------------------------------------------------------------------------

type IClientSink interface {
	Send(msg models.MServerMessage) bool
	Close()
}

// -----------------------------------------------------------------------------
// IRegistry tracks live connections, their authenticated identity and their
// subscriptions, and performs fan-out. The broadcast scheduler and the
// notification dispatcher depend on this abstraction, never on the concrete
// registry.
// -----------------------------------------------------------------------------

type IRegistry interface {

	// Connect registers a new unauthenticated session and returns its id.
	Connect(sink IClientSink) string

	// Authenticate resolves the credential and binds the session to the user.
	// On failure the session stays connected and unauthenticated.
	Authenticate(ctx context.Context, connID, credential string) (string, error)

	// Subscribe adds a subscription kind to the session. Kinds carrying
	// user-scoped data fail with an unauthorized error on unauthenticated
	// sessions.
	Subscribe(connID string, kind models.MSubscriptionKind) error

	// Unsubscribe removes a subscription kind from the session.
	Unsubscribe(connID string, kind models.MSubscriptionKind) error

	// JoinRoom / LeaveRoom manage named room membership.
	JoinRoom(connID, room string) error
	LeaveRoom(connID, room string) error

	// Disconnect removes the session, its subscriptions, its room membership
	// and its user index entry as one atomic step. Idempotent.
	Disconnect(connID string)

	// -----------------------------------------------------------------------------
	// Fan-out
	// -----------------------------------------------------------------------------

	FanoutBySubscription(kind models.MSubscriptionKind, msg models.MServerMessage)
	FanoutByUser(userID string, msg models.MServerMessage)
	FanoutByRoom(room string, msg models.MServerMessage)
	FanoutAll(msg models.MServerMessage)

	// SendTo delivers to one connection; false if the connection is gone or
	// the message was dropped.
	SendTo(connID string, msg models.MServerMessage) bool

	// SubscriptionTargets snapshots the sessions subscribed to kind, for
	// per-session payloads (portfolio ticks).
	SubscriptionTargets(kind models.MSubscriptionKind) []models.MSubscriberRef

	// -----------------------------------------------------------------------------
	// Stats
	// -----------------------------------------------------------------------------

	CountUsers() int
	CountConnections() int
	CountSubscribers(kind models.MSubscriptionKind) int
	IsUserConnected(userID string) bool
}

package server

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"coinvest/src/helpers"
	"coinvest/src/logger"
	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

// fakeSink records delivered messages. full simulates a saturated client
// buffer so Send reports a drop.
type fakeSink struct {
	mu       sync.Mutex
	messages []models.MServerMessage
	closed   bool
	full     bool
}

func (f *fakeSink) Send(msg models.MServerMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.messages = append(f.messages, msg)
	return true
}

func (f *fakeSink) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeSink) last() models.MServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeVerifier accepts any token present in its map.
type fakeVerifier struct {
	tokens map[string]string
}

func (f *fakeVerifier) Verify(ctx context.Context, credential string) (string, error) {
	userID, ok := f.tokens[credential]
	if !ok {
		return "", helpers.InvalidCredential("unknown or expired token")
	}
	return userID, nil
}

// -----------------------------------------------------------------------------

func newTestRegistry() *Registry {
	verifier := &fakeVerifier{tokens: map[string]string{
		"token-a": "user-a",
		"token-b": "user-b",
	}}
	return NewRegistry(verifier, logger.NewLogger("ERROR", "test"))
}

func priceMsg() models.MServerMessage {
	return models.MServerMessage{Type: models.MsgPriceUpdate}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func TestRegistry_ConnectAndCount(t *testing.T) {
	r := newTestRegistry()

	id1 := r.Connect(&fakeSink{})
	id2 := r.Connect(&fakeSink{})

	require.NotEqual(t, id1, id2)
	require.Equal(t, 2, r.CountConnections())
	require.Equal(t, 0, r.CountUsers(), "anonymous sessions carry no user")
}

func TestRegistry_Authenticate(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	userID, err := r.Authenticate(context.Background(), connID, "token-a")
	require.NoError(t, err)
	require.Equal(t, "user-a", userID)

	require.Equal(t, 1, r.CountUsers())
	require.True(t, r.IsUserConnected("user-a"))
	require.False(t, r.IsUserConnected("user-b"))
}

func TestRegistry_AuthenticateBadToken(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	_, err := r.Authenticate(context.Background(), connID, "bogus")
	require.Error(t, err)
	require.True(t, helpers.IsInvalidCredential(err))

	// The session survives a failed attempt and can retry.
	require.Equal(t, 1, r.CountConnections())
	_, err = r.Authenticate(context.Background(), connID, "token-a")
	require.NoError(t, err)
}

func TestRegistry_AuthenticateTwiceRejected(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	_, err := r.Authenticate(context.Background(), connID, "token-a")
	require.NoError(t, err)

	_, err = r.Authenticate(context.Background(), connID, "token-b")
	require.Error(t, err)
	require.True(t, helpers.IsValidation(err))
	require.True(t, r.IsUserConnected("user-a"), "original binding must survive")
}

func TestRegistry_MultipleSessionsPerUser(t *testing.T) {
	r := newTestRegistry()

	conn1 := r.Connect(&fakeSink{})
	conn2 := r.Connect(&fakeSink{})

	_, err := r.Authenticate(context.Background(), conn1, "token-a")
	require.NoError(t, err)
	_, err = r.Authenticate(context.Background(), conn2, "token-a")
	require.NoError(t, err)

	require.Equal(t, 1, r.CountUsers())
	require.Equal(t, 2, r.CountConnections())

	// Dropping one session keeps the user connected.
	r.Disconnect(conn1)
	require.True(t, r.IsUserConnected("user-a"))

	r.Disconnect(conn2)
	require.False(t, r.IsUserConnected("user-a"))
	require.Equal(t, 0, r.CountUsers())
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func TestRegistry_SubscribePricesAnonymous(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	require.NoError(t, r.Subscribe(connID, models.SubPrices))
	require.Equal(t, 1, r.CountSubscribers(models.SubPrices))
}

func TestRegistry_SubscribePortfolioRequiresAuth(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	err := r.Subscribe(connID, models.SubPortfolio)
	require.Error(t, err)
	require.True(t, helpers.IsUnauthorized(err))
	require.Equal(t, 0, r.CountSubscribers(models.SubPortfolio))

	_, err = r.Authenticate(context.Background(), connID, "token-a")
	require.NoError(t, err)
	require.NoError(t, r.Subscribe(connID, models.SubPortfolio))
	require.Equal(t, 1, r.CountSubscribers(models.SubPortfolio))
}

func TestRegistry_SubscribeUnknownKind(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	err := r.Subscribe(connID, models.MSubscriptionKind("weather"))
	require.Error(t, err)
	require.True(t, helpers.IsValidation(err))
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	require.NoError(t, r.Subscribe(connID, models.SubPrices))
	require.NoError(t, r.Unsubscribe(connID, models.SubPrices))
	require.Equal(t, 0, r.CountSubscribers(models.SubPrices))

	// Unsubscribing a kind that was never subscribed is a no-op.
	require.NoError(t, r.Unsubscribe(connID, models.SubPrices))
}

// -----------------------------------------------------------------------------
// Disconnect
// -----------------------------------------------------------------------------

func TestRegistry_DisconnectCleansEverything(t *testing.T) {
	r := newTestRegistry()
	sink := &fakeSink{}
	connID := r.Connect(sink)

	_, err := r.Authenticate(context.Background(), connID, "token-a")
	require.NoError(t, err)
	require.NoError(t, r.Subscribe(connID, models.SubPrices))
	require.NoError(t, r.Subscribe(connID, models.SubPortfolio))
	require.NoError(t, r.JoinRoom(connID, "lounge"))

	r.Disconnect(connID)

	require.Equal(t, 0, r.CountConnections())
	require.Equal(t, 0, r.CountUsers())
	require.Equal(t, 0, r.CountSubscribers(models.SubPrices))
	require.Equal(t, 0, r.CountSubscribers(models.SubPortfolio))
	require.True(t, sink.isClosed())

	// No fan-out can reach the connection once Disconnect returned.
	r.FanoutBySubscription(models.SubPrices, priceMsg())
	r.FanoutByUser("user-a", priceMsg())
	r.FanoutByRoom("lounge", priceMsg())
	require.Equal(t, 0, sink.count())
}

func TestRegistry_DisconnectIdempotent(t *testing.T) {
	r := newTestRegistry()
	connID := r.Connect(&fakeSink{})

	r.Disconnect(connID)
	r.Disconnect(connID)
	r.Disconnect("never-existed")

	require.Equal(t, 0, r.CountConnections())
}

// -----------------------------------------------------------------------------
// Fan-out
// -----------------------------------------------------------------------------

func TestRegistry_FanoutBySubscription(t *testing.T) {
	r := newTestRegistry()

	subscribed := &fakeSink{}
	other := &fakeSink{}

	connSub := r.Connect(subscribed)
	r.Connect(other)
	require.NoError(t, r.Subscribe(connSub, models.SubPrices))

	r.FanoutBySubscription(models.SubPrices, priceMsg())

	require.Equal(t, 1, subscribed.count())
	require.Equal(t, 0, other.count())
}

func TestRegistry_FanoutByUserTargetsAllSessions(t *testing.T) {
	r := newTestRegistry()

	sinkA1 := &fakeSink{}
	sinkA2 := &fakeSink{}
	sinkB := &fakeSink{}

	connA1 := r.Connect(sinkA1)
	connA2 := r.Connect(sinkA2)
	connB := r.Connect(sinkB)

	ctx := context.Background()
	_, err := r.Authenticate(ctx, connA1, "token-a")
	require.NoError(t, err)
	_, err = r.Authenticate(ctx, connA2, "token-a")
	require.NoError(t, err)
	_, err = r.Authenticate(ctx, connB, "token-b")
	require.NoError(t, err)

	msg := models.MServerMessage{Type: models.MsgInvestmentCreated, UserID: "user-a"}
	r.FanoutByUser("user-a", msg)

	require.Equal(t, 1, sinkA1.count())
	require.Equal(t, 1, sinkA2.count())
	require.Equal(t, 0, sinkB.count(), "other users must not receive the event")
	require.Equal(t, models.MsgInvestmentCreated, sinkA1.last().Type)
}

func TestRegistry_FanoutByUserOffline(t *testing.T) {
	r := newTestRegistry()

	// No sessions for the user at all; must be a silent no-op.
	r.FanoutByUser("user-a", priceMsg())
}

func TestRegistry_FanoutAll(t *testing.T) {
	r := newTestRegistry()

	sinks := []*fakeSink{{}, {}, {}}
	for _, s := range sinks {
		r.Connect(s)
	}

	r.FanoutAll(models.MServerMessage{Type: models.MsgNotification})

	for _, s := range sinks {
		require.Equal(t, 1, s.count())
	}
}

func TestRegistry_FanoutByRoom(t *testing.T) {
	r := newTestRegistry()

	inRoom := &fakeSink{}
	outside := &fakeSink{}

	connIn := r.Connect(inRoom)
	r.Connect(outside)

	require.NoError(t, r.JoinRoom(connIn, "lounge"))

	r.FanoutByRoom("lounge", priceMsg())
	require.Equal(t, 1, inRoom.count())
	require.Equal(t, 0, outside.count())

	require.NoError(t, r.LeaveRoom(connIn, "lounge"))
	r.FanoutByRoom("lounge", priceMsg())
	require.Equal(t, 1, inRoom.count())
}

func TestRegistry_SlowConsumerDisconnected(t *testing.T) {
	r := newTestRegistry()

	healthy := &fakeSink{}
	stalled := &fakeSink{full: true}

	connHealthy := r.Connect(healthy)
	connStalled := r.Connect(stalled)

	require.NoError(t, r.Subscribe(connHealthy, models.SubPrices))
	require.NoError(t, r.Subscribe(connStalled, models.SubPrices))

	r.FanoutBySubscription(models.SubPrices, priceMsg())

	require.Equal(t, 1, healthy.count())
	require.True(t, stalled.isClosed(), "stalled consumer must be disconnected")
	require.Equal(t, 1, r.CountConnections())
	require.Equal(t, 1, r.CountSubscribers(models.SubPrices))
}

// -----------------------------------------------------------------------------
// Targeted sends
// -----------------------------------------------------------------------------

func TestRegistry_SendTo(t *testing.T) {
	r := newTestRegistry()
	sink := &fakeSink{}
	connID := r.Connect(sink)

	require.True(t, r.SendTo(connID, priceMsg()))
	require.Equal(t, 1, sink.count())

	r.Disconnect(connID)
	require.False(t, r.SendTo(connID, priceMsg()))
}

func TestRegistry_SubscriptionTargets(t *testing.T) {
	r := newTestRegistry()

	connA := r.Connect(&fakeSink{})
	connB := r.Connect(&fakeSink{})

	ctx := context.Background()
	_, err := r.Authenticate(ctx, connA, "token-a")
	require.NoError(t, err)
	_, err = r.Authenticate(ctx, connB, "token-b")
	require.NoError(t, err)

	require.NoError(t, r.Subscribe(connA, models.SubPortfolio))
	require.NoError(t, r.Subscribe(connB, models.SubPortfolio))

	targets := r.SubscriptionTargets(models.SubPortfolio)
	require.Len(t, targets, 2)

	users := map[string]string{}
	for _, tgt := range targets {
		users[tgt.ConnectionID] = tgt.UserID
	}
	require.Equal(t, "user-a", users[connA])
	require.Equal(t, "user-b", users[connB])
}

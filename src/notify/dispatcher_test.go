package notify_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"coinvest/src/logger"
	"coinvest/src/models"
	"coinvest/src/notify"
	"coinvest/src/server"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeDB struct {
	mu      sync.Mutex
	saved   []models.MNotification
	nextID  int
	saveErr error
	failFor map[string]bool
	users   []string
	read    []string
	readAll []string
}

func (f *fakeDB) Initialize() error { return nil }

func (f *fakeDB) InvestmentsForValuation(ctx context.Context, userID string) ([]models.MInvestment, error) {
	return nil, nil
}

func (f *fakeDB) SaveNotification(ctx context.Context, n *models.MNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.failFor[n.UserID] {
		return errors.New("constraint violation")
	}
	f.nextID++
	n.ID = fmt.Sprintf("%d", f.nextID)
	f.saved = append(f.saved, *n)
	return nil
}

func (f *fakeDB) NotificationsForUser(ctx context.Context, userID string, limit int) ([]models.MNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MNotification
	for _, n := range f.saved {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeDB) MarkNotificationRead(ctx context.Context, id string) error {
	f.read = append(f.read, id)
	return nil
}

func (f *fakeDB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	f.readAll = append(f.readAll, userID)
	return nil
}

func (f *fakeDB) ActiveUserIDs(ctx context.Context) ([]string, error) { return f.users, nil }

func (f *fakeDB) UserIDForToken(ctx context.Context, token string) (string, error) {
	return "user-" + token, nil
}

func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// -----------------------------------------------------------------------------

type fakeSink struct {
	mu       sync.Mutex
	messages []models.MServerMessage
}

func (f *fakeSink) Send(msg models.MServerMessage) bool {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	return true
}

func (f *fakeSink) Close() {}

func (f *fakeSink) all() []models.MServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.MServerMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

// -----------------------------------------------------------------------------

func newFixture(db *fakeDB) (*notify.Dispatcher, *server.Registry) {
	log := logger.NewLogger("ERROR", "test")
	registry := server.NewRegistry(&tokenVerifier{db: db}, log)
	return notify.NewDispatcher(db, registry, log), registry
}

type tokenVerifier struct {
	db *fakeDB
}

func (v *tokenVerifier) Verify(ctx context.Context, credential string) (string, error) {
	return v.db.UserIDForToken(ctx, credential)
}

func connectUser(t *testing.T, registry *server.Registry, token string) *fakeSink {
	t.Helper()
	sink := &fakeSink{}
	connID := registry.Connect(sink)
	_, err := registry.Authenticate(context.Background(), connID, token)
	require.NoError(t, err)
	return sink
}

// -----------------------------------------------------------------------------

func TestDispatcher_NotifyPersistsThenPushes(t *testing.T) {
	db := &fakeDB{}
	d, registry := newFixture(db)

	sink := connectUser(t, registry, "a")

	n, err := d.Notify(context.Background(), "user-a", "Investment matured",
		"Your BTC plan has matured", models.CategoryInvestment,
		map[string]string{"investment_id": "inv-1"})
	require.NoError(t, err)
	require.Equal(t, "1", n.ID, "persisted id must be assigned before the push")

	require.Equal(t, 1, db.savedCount())

	msgs := sink.all()
	require.Len(t, msgs, 1)
	require.Equal(t, models.MsgNotification, msgs[0].Type)
	require.Equal(t, "1", msgs[0].Notification.ID)
	require.Equal(t, "Investment matured", msgs[0].Notification.Title)
}

func TestDispatcher_NotifyPersistFailureNoPush(t *testing.T) {
	db := &fakeDB{saveErr: errors.New("disk full")}
	d, registry := newFixture(db)

	sink := connectUser(t, registry, "a")

	_, err := d.Notify(context.Background(), "user-a", "t", "m", models.CategorySystem, nil)
	require.Error(t, err)
	require.Empty(t, sink.all(), "a failed save must not produce a live push")
}

func TestDispatcher_NotifyOfflineUserStillPersists(t *testing.T) {
	db := &fakeDB{}
	d, _ := newFixture(db)

	n, err := d.Notify(context.Background(), "user-offline", "t", "m", models.CategorySystem, nil)
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.Equal(t, 1, db.savedCount())
}

func TestDispatcher_NotifyTargetsOnlyOwner(t *testing.T) {
	db := &fakeDB{}
	d, registry := newFixture(db)

	sinkA := connectUser(t, registry, "a")
	sinkB := connectUser(t, registry, "b")

	_, err := d.Notify(context.Background(), "user-a", "t", "m", models.CategorySecurity, nil)
	require.NoError(t, err)

	require.Len(t, sinkA.all(), 1)
	require.Empty(t, sinkB.all())
}

// -----------------------------------------------------------------------------

func TestDispatcher_BroadcastToAll(t *testing.T) {
	db := &fakeDB{users: []string{"user-a", "user-b", "user-c"}}
	d, registry := newFixture(db)

	sinkA := connectUser(t, registry, "a")
	anonymous := &fakeSink{}
	registry.Connect(anonymous)

	saved, err := d.BroadcastToAll(context.Background(), "Maintenance",
		"Scheduled downtime tonight", models.CategorySystem)
	require.NoError(t, err)
	require.Equal(t, 3, saved, "one durable record per active user")

	// The live push is registry-wide, connected or not, authenticated or not.
	require.Len(t, sinkA.all(), 1)
	require.Len(t, anonymous.all(), 1)
}

func TestDispatcher_BroadcastSkipsFailedRows(t *testing.T) {
	db := &fakeDB{
		users:   []string{"user-a", "user-b", "user-c"},
		failFor: map[string]bool{"user-b": true},
	}
	d, _ := newFixture(db)

	saved, err := d.BroadcastToAll(context.Background(), "t", "m", models.CategorySystem)
	require.NoError(t, err)
	require.Equal(t, 2, saved, "one bad row must not starve the rest")
}

// -----------------------------------------------------------------------------

func TestDispatcher_MarkRead(t *testing.T) {
	db := &fakeDB{}
	d, _ := newFixture(db)

	require.NoError(t, d.MarkRead(context.Background(), "42"))
	require.Equal(t, []string{"42"}, db.read)

	require.NoError(t, d.MarkAllRead(context.Background(), "user-a"))
	require.Equal(t, []string{"user-a"}, db.readAll)
}

func TestDispatcher_NotificationsFor(t *testing.T) {
	db := &fakeDB{}
	d, _ := newFixture(db)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := d.Notify(ctx, "user-a", fmt.Sprintf("n%d", i), "m", models.CategorySystem, nil)
		require.NoError(t, err)
	}

	out, err := d.NotificationsFor(ctx, "user-a", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

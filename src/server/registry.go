package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coinvest/src/helpers"
	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// session is one live connection. userID stays empty until authentication
// completes; subscriptions that carry user-scoped data require it.
type session struct {
	id       string
	userID   string
	subs     map[models.MSubscriptionKind]bool
	rooms    map[string]bool
	sink     interfaces.IClientSink
	joinedAt time.Time
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry tracks every live connection and its subscriptions, and owns all
// fan-out. All maps are guarded by one RWMutex; every mutation is atomic with
// respect to readers. Sends happen under the read lock (they are non-blocking
// channel pushes), which makes Disconnect fully synchronous: once it returns,
// no fan-out can reach that connection.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	userIndex map[string]map[string]bool                   // userID -> set of connIDs
	subIndex  map[models.MSubscriptionKind]map[string]bool // kind -> set of connIDs
	roomIndex map[string]map[string]bool                   // room -> set of connIDs

	Verifier interfaces.ICredentialVerifier
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRegistry(verifier interfaces.ICredentialVerifier, log *logger.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*session),
		userIndex: make(map[string]map[string]bool),
		subIndex:  make(map[models.MSubscriptionKind]map[string]bool),
		roomIndex: make(map[string]map[string]bool),
		Verifier:  verifier,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Connect registers a new unauthenticated session and returns its id.
func (r *Registry) Connect(sink interfaces.IClientSink) string {
	s := &session{
		id:       uuid.NewString(),
		subs:     make(map[models.MSubscriptionKind]bool),
		rooms:    make(map[string]bool),
		sink:     sink,
		joinedAt: time.Now(),
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.Logger.Debug("Connection %s registered", s.id)
	return s.id
}

// -----------------------------------------------------------------------------

// Authenticate resolves the credential and binds the session to the user.
// The credential lookup runs outside the registry lock (it may hit storage).
// A failed lookup leaves the session connected and unauthenticated so the
// client can retry.
func (r *Registry) Authenticate(ctx context.Context, connID, credential string) (string, error) {
	if credential == "" {
		return "", helpers.Validation("credential is required")
	}

	r.mu.RLock()
	s, ok := r.sessions[connID]
	alreadyAuthed := ok && s.userID != ""
	r.mu.RUnlock()

	if !ok {
		return "", helpers.NotFound(fmt.Sprintf("connection %s not found", connID))
	}
	if alreadyAuthed {
		return "", helpers.Validation("session is already authenticated")
	}

	userID, err := r.Verifier.Verify(ctx, credential)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection may have dropped during the lookup.
	s, ok = r.sessions[connID]
	if !ok {
		return "", helpers.NotFound(fmt.Sprintf("connection %s not found", connID))
	}
	if s.userID != "" {
		return "", helpers.Validation("session is already authenticated")
	}

	s.userID = userID
	if r.userIndex[userID] == nil {
		r.userIndex[userID] = make(map[string]bool)
	}
	r.userIndex[userID][connID] = true

	r.Logger.Info("Connection %s authenticated as user %s", connID, userID)
	return userID, nil
}

// -----------------------------------------------------------------------------

// Subscribe adds a subscription kind to the session.
func (r *Registry) Subscribe(connID string, kind models.MSubscriptionKind) error {
	switch kind {
	case models.SubPrices, models.SubPortfolio, models.SubTransactions:
	default:
		return helpers.Validation(fmt.Sprintf("unknown subscription kind: %s", kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return helpers.NotFound(fmt.Sprintf("connection %s not found", connID))
	}

	if kind.RequiresAuth() && s.userID == "" {
		return helpers.Unauthorized(fmt.Sprintf("%s feed requires authentication", kind))
	}

	s.subs[kind] = true
	if r.subIndex[kind] == nil {
		r.subIndex[kind] = make(map[string]bool)
	}
	r.subIndex[kind][connID] = true
	return nil
}

// -----------------------------------------------------------------------------

func (r *Registry) Unsubscribe(connID string, kind models.MSubscriptionKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return helpers.NotFound(fmt.Sprintf("connection %s not found", connID))
	}

	delete(s.subs, kind)
	if set, ok := r.subIndex[kind]; ok {
		delete(set, connID)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (r *Registry) JoinRoom(connID, room string) error {
	if room == "" {
		return helpers.Validation("room name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return helpers.NotFound(fmt.Sprintf("connection %s not found", connID))
	}

	s.rooms[room] = true
	if r.roomIndex[room] == nil {
		r.roomIndex[room] = make(map[string]bool)
	}
	r.roomIndex[room][connID] = true
	return nil
}

// -----------------------------------------------------------------------------

func (r *Registry) LeaveRoom(connID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return helpers.NotFound(fmt.Sprintf("connection %s not found", connID))
	}

	delete(s.rooms, room)
	r.dropFromRoomIndex(room, connID)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect removes the session and every index entry pointing at it as one
// atomic step. Safe to call more than once; later calls are no-ops.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()

	s, ok := r.sessions[connID]
	if !ok {
		r.mu.Unlock()
		return
	}

	delete(r.sessions, connID)

	if s.userID != "" {
		if set, ok := r.userIndex[s.userID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.userIndex, s.userID)
			}
		}
	}
	for kind := range s.subs {
		if set, ok := r.subIndex[kind]; ok {
			delete(set, connID)
		}
	}
	for room := range s.rooms {
		r.dropFromRoomIndex(room, connID)
	}

	r.mu.Unlock()

	// Closing the sink outside the lock: the write pump may be mid-send.
	s.sink.Close()
	r.Logger.Debug("Connection %s removed", connID)
}

// -----------------------------------------------------------------------------

// dropFromRoomIndex must be called with the write lock held.
func (r *Registry) dropFromRoomIndex(room, connID string) {
	if set, ok := r.roomIndex[room]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.roomIndex, room)
		}
	}
}

// -----------------------------------------------------------------------------
// Fan-out
// -----------------------------------------------------------------------------

// FanoutBySubscription sends msg to every session subscribed to kind.
func (r *Registry) FanoutBySubscription(kind models.MSubscriptionKind, msg models.MServerMessage) {
	r.fanoutSet(func() map[string]bool { return r.subIndex[kind] }, msg)
}

// FanoutByUser sends msg to every live session of the user. A user with no
// live session is a no-op, not an error.
func (r *Registry) FanoutByUser(userID string, msg models.MServerMessage) {
	r.fanoutSet(func() map[string]bool { return r.userIndex[userID] }, msg)
}

// FanoutByRoom sends msg to every session in the room.
func (r *Registry) FanoutByRoom(room string, msg models.MServerMessage) {
	r.fanoutSet(func() map[string]bool { return r.roomIndex[room] }, msg)
}

// FanoutAll sends msg to every live session.
func (r *Registry) FanoutAll(msg models.MServerMessage) {
	var stalled []string

	r.mu.RLock()
	for id, s := range r.sessions {
		if !s.sink.Send(msg) {
			stalled = append(stalled, id)
		}
	}
	r.mu.RUnlock()

	r.dropStalled(stalled)
}

// -----------------------------------------------------------------------------

// fanoutSet delivers to the connection ids in the set selected under the read
// lock. Sessions whose buffer overflowed are disconnected afterwards, the
// teacher policy for slow consumers.
func (r *Registry) fanoutSet(pick func() map[string]bool, msg models.MServerMessage) {
	var stalled []string

	r.mu.RLock()
	for connID := range pick() {
		if s, ok := r.sessions[connID]; ok {
			if !s.sink.Send(msg) {
				stalled = append(stalled, connID)
			}
		}
	}
	r.mu.RUnlock()

	r.dropStalled(stalled)
}

// -----------------------------------------------------------------------------

func (r *Registry) dropStalled(connIDs []string) {
	for _, id := range connIDs {
		r.Logger.Warning("Connection %s too slow, disconnecting", id)
		r.Disconnect(id)
	}
}

// -----------------------------------------------------------------------------

// SendTo delivers to one connection. False when the connection is gone or the
// message was dropped.
func (r *Registry) SendTo(connID string, msg models.MServerMessage) bool {
	r.mu.RLock()
	s, ok := r.sessions[connID]
	var sent bool
	if ok {
		sent = s.sink.Send(msg)
	}
	r.mu.RUnlock()

	return ok && sent
}

// -----------------------------------------------------------------------------

// SubscriptionTargets snapshots sessions subscribed to kind for per-session
// payload pushes.
func (r *Registry) SubscriptionTargets(kind models.MSubscriptionKind) []models.MSubscriberRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.subIndex[kind]
	out := make([]models.MSubscriberRef, 0, len(set))
	for connID := range set {
		if s, ok := r.sessions[connID]; ok {
			out = append(out, models.MSubscriberRef{
				ConnectionID: connID,
				UserID:       s.userID,
			})
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Stats
// -----------------------------------------------------------------------------

func (r *Registry) CountUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userIndex)
}

func (r *Registry) CountConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) CountSubscribers(kind models.MSubscriptionKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subIndex[kind])
}

func (r *Registry) IsUserConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userIndex[userID]) > 0
}

// -----------------------------------------------------------------------------

// UserID returns the authenticated user of a connection ("" when anonymous).
func (r *Registry) UserID(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok {
		return "", false
	}
	return s.userID, true
}

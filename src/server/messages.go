package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"coinvest/src/helpers"
	"coinvest/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		// Buffered channel isolates this connection from fan-out
		send: make(chan models.MServerMessage, s.Config.Broadcast.ClientBuffer),
	}
	client.connID = s.Registry.Connect(client)

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *Server) handleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.sendError(client, helpers.Validation("malformed command payload"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cmd.Action {
	case models.CmdAuthenticate:
		s.handleAuthenticate(ctx, client, cmd)

	case models.CmdSubscribePrices:
		s.handleSubscribe(client, models.SubPrices, cmd)
	case models.CmdUnsubscribePrices:
		s.handleUnsubscribe(client, models.SubPrices)

	case models.CmdSubscribePortfolio:
		s.handleSubscribe(client, models.SubPortfolio, cmd)
	case models.CmdUnsubscribePortfolio:
		s.handleUnsubscribe(client, models.SubPortfolio)

	case models.CmdSubscribeTransactions:
		s.handleSubscribe(client, models.SubTransactions, cmd)
	case models.CmdUnsubscribeTransactions:
		s.handleUnsubscribe(client, models.SubTransactions)

	case models.CmdJoinRoom:
		if err := s.Registry.JoinRoom(client.connID, cmd.Room); err != nil {
			s.sendError(client, err)
		}
	case models.CmdLeaveRoom:
		if err := s.Registry.LeaveRoom(client.connID, cmd.Room); err != nil {
			s.sendError(client, err)
		}

	default:
		s.sendError(client, helpers.Validation("unknown action: "+cmd.Action))
	}
}

// -----------------------------------------------------------------------------

func (s *Server) handleAuthenticate(ctx context.Context, client *Client, cmd models.MClientCommand) {
	userID, err := s.Registry.Authenticate(ctx, client.connID, cmd.Token)
	if err != nil {
		s.sendError(client, err)
		return
	}

	client.Send(models.MServerMessage{
		Type:      models.MsgAuthenticated,
		UserID:    userID,
		Timestamp: time.Now().Unix(),
	})
}

// -----------------------------------------------------------------------------

// handleSubscribe registers the subscription and pushes the current state
// immediately so the client does not wait a full tick for its first payload.
func (s *Server) handleSubscribe(client *Client, kind models.MSubscriptionKind, cmd models.MClientCommand) {
	// The portfolio command names a user id; it must match the session's
	// authenticated identity, one user cannot watch another's portfolio.
	if kind == models.SubPortfolio && cmd.UserID != "" {
		if authed, ok := s.Registry.UserID(client.connID); !ok || authed != cmd.UserID {
			s.sendError(client, helpers.Unauthorized("portfolio subscription user mismatch"))
			return
		}
	}

	if err := s.Registry.Subscribe(client.connID, kind); err != nil {
		s.sendError(client, err)
		return
	}

	switch kind {
	case models.SubPrices:
		if prices := s.Cache.GetAllAny(); len(prices) > 0 {
			client.Send(models.MServerMessage{
				Type:      models.MsgPriceUpdate,
				Prices:    prices,
				Timestamp: time.Now().Unix(),
			})
		}
	case models.SubPortfolio:
		userID, _ := s.Registry.UserID(client.connID)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		valuation, err := s.Valuator.Valuate(ctx, userID)
		if err != nil {
			s.Logger.Warning("Initial valuation for %s failed: %v", userID, err)
			return
		}
		client.Send(models.MServerMessage{
			Type:      models.MsgPortfolioUpdate,
			Valuation: &valuation,
			Timestamp: time.Now().Unix(),
		})
	}
}

// -----------------------------------------------------------------------------

func (s *Server) handleUnsubscribe(client *Client, kind models.MSubscriptionKind) {
	if err := s.Registry.Unsubscribe(client.connID, kind); err != nil {
		s.sendError(client, err)
	}
}

// -----------------------------------------------------------------------------

// sendError reports a failure to this connection only.
func (s *Server) sendError(client *Client, err error) {
	client.Send(models.MServerMessage{
		Type: models.MsgError,
		Error: &models.MErrorPayload{
			Message: err.Error(),
			Code:    helpers.ErrorCode(err),
		},
		Timestamp: time.Now().Unix(),
	})
}

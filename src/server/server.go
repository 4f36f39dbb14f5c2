package server

import (
	"fmt"
	"net/http"
	"strings"

	"coinvest/src/helpers"
	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/models"
	"coinvest/src/notify"
	"coinvest/src/scheduler"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type Server struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Registry   *Registry
	Cache      interfaces.IPriceCache
	Valuator   interfaces.IValuator
	Scheduler  *scheduler.Scheduler
	Dispatcher *notify.Dispatcher

	engine *gin.Engine
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(
	cfg *models.MConfig,
	log *logger.Logger,
	registry *Registry,
	cache interfaces.IPriceCache,
	valuator interfaces.IValuator,
	sched *scheduler.Scheduler,
	dispatcher *notify.Dispatcher,
) *Server {
	// Set Gin mode
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:     cfg,
		Logger:     log,
		Registry:   registry,
		Cache:      cache,
		Valuator:   valuator,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		engine:     gin.Default(),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/stats", s.getStats)
	s.engine.GET("/api/prices", s.getPrices)

	// Notifications
	s.engine.GET("/api/notifications/:user_id", s.getNotifications)
	s.engine.POST("/api/notifications/:id/read", s.markNotificationRead)
	s.engine.POST("/api/notifications/read-all/:user_id", s.markAllNotificationsRead)

	// Admin actions against the real-time core
	s.engine.POST("/api/admin/price-tick", s.triggerPriceTick)
	s.engine.POST("/api/admin/portfolio-tick/:user_id", s.triggerPortfolioTick)
	s.engine.POST("/api/admin/notify/:user_id", s.sendNotification)
	s.engine.POST("/api/admin/broadcast", s.broadcastNotification)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)
	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.Registry.CountConnections(),
		"users":       s.Registry.CountUsers(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections":             s.Registry.CountConnections(),
		"users":                   s.Registry.CountUsers(),
		"price_subscribers":       s.Registry.CountSubscribers(models.SubPrices),
		"portfolio_subscribers":   s.Registry.CountSubscribers(models.SubPortfolio),
		"transaction_subscribers": s.Registry.CountSubscribers(models.SubTransactions),
	})
}

// -----------------------------------------------------------------------------

// getPrices serves the cached price set over plain HTTP: fresh records when
// available, else the last known set.
func (s *Server) getPrices(c *gin.Context) {
	prices := s.Cache.GetAllFresh()
	if len(prices) == 0 {
		prices = s.Cache.GetAllAny()
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// -----------------------------------------------------------------------------

func (s *Server) getNotifications(c *gin.Context) {
	userID := c.Param("user_id")

	notifications, err := s.Dispatcher.NotificationsFor(c.Request.Context(), userID, 50)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// -----------------------------------------------------------------------------

func (s *Server) markNotificationRead(c *gin.Context) {
	if err := s.Dispatcher.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// -----------------------------------------------------------------------------

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	if err := s.Dispatcher.MarkAllRead(c.Request.Context(), c.Param("user_id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// -----------------------------------------------------------------------------

func (s *Server) triggerPriceTick(c *gin.Context) {
	if err := s.Scheduler.PriceTick(c.Request.Context()); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// -----------------------------------------------------------------------------

func (s *Server) triggerPortfolioTick(c *gin.Context) {
	if err := s.Scheduler.PortfolioTickFor(c.Request.Context(), c.Param("user_id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// -----------------------------------------------------------------------------

type notifyRequest struct {
	Title    string            `json:"title" binding:"required"`
	Message  string            `json:"message" binding:"required"`
	Category string            `json:"category" binding:"required"`
	Payload  map[string]string `json:"payload"`
}

func (s *Server) sendNotification(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, helpers.Validation(err.Error()))
		return
	}
	if !models.ValidCategory(req.Category) {
		s.abortWithError(c, helpers.Validation("unknown category: "+req.Category))
		return
	}

	n, err := s.Dispatcher.Notify(c.Request.Context(), c.Param("user_id"), req.Title, req.Message, req.Category, req.Payload)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notification": n})
}

// -----------------------------------------------------------------------------

func (s *Server) broadcastNotification(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, helpers.Validation(err.Error()))
		return
	}
	if !models.ValidCategory(req.Category) {
		s.abortWithError(c, helpers.Validation("unknown category: "+req.Category))
		return
	}

	saved, err := s.Dispatcher.BroadcastToAll(c.Request.Context(), req.Title, req.Message, req.Category)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "persisted": saved})
}

// -----------------------------------------------------------------------------

func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case helpers.IsValidation(err):
		status = http.StatusBadRequest
	case helpers.IsNotFound(err):
		status = http.StatusNotFound
	case helpers.IsUnauthorized(err), helpers.IsInvalidCredential(err):
		status = http.StatusUnauthorized
	case helpers.IsUpstreamUnavailable(err):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": helpers.ErrorCode(err)})
}

// Package server exposes a Session over HTTP: a JSON API, a WebSocket
// stream of ticks and events, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/philtim/timearchitect/geonames"
	"github.com/philtim/timearchitect/logger"
	"github.com/philtim/timearchitect/metrics"
	"github.com/philtim/timearchitect/session"
)

// Deps contains everything the server needs. Metrics and Cities are optional.
type Deps struct {
	Session   *session.Session
	Metrics   *metrics.Service
	Cities    *geonames.Database
	RateLimit float64 // requests per second per client, 0 disables
}

// Server is the HTTP daemon.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	session    *session.Session
	metrics    *metrics.Service
	cities     *geonames.Database
	hub        *Hub
}

// New builds the router.
func New(deps Deps) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Errorf("[PANIC RECOVERY] path=%s method=%s error=%v",
			c.Request.URL.Path, c.Request.Method, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrMsgInternalError})
	}))
	r.Use(requestLogger())
	if deps.RateLimit > 0 {
		r.Use(NewRateLimiter(deps.RateLimit, int(deps.RateLimit*2)+1).Middleware())
	}

	s := &Server{
		router:  r,
		session: deps.Session,
		metrics: deps.Metrics,
		cities:  deps.Cities,
		hub:     NewHub(deps.Session.Bus()),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.router.GET("/ws", s.hub.HandleConnection)

	api := s.router.Group("/api")
	{
		api.GET("/zones", s.handleZones)
		api.GET("/time/*zone", s.handleTime)
		api.GET("/dashboard", s.handleDashboard)
		api.GET("/delta", s.handleDelta)
		api.GET("/zone", s.handleGetZone)
		api.PUT("/zone", s.handleSelectZone)

		api.GET("/alarm", s.handleGetAlarm)
		api.PUT("/alarm", s.handleSetAlarm)
		api.DELETE("/alarm", s.handleCancelAlarm)
		api.POST("/alarm/stop", s.handleStopAlarm)
		api.POST("/alarm/snooze", s.handleSnooze)
		api.POST("/alarm/preview", s.handlePreview)
		api.POST("/keys", s.handleKey)

		api.GET("/preferences", s.handleGetPreferences)
		api.PUT("/preferences", s.handleSavePreferences)

		api.GET("/cities", s.handleCities)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub, which the tick driver feeds.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("HTTP server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

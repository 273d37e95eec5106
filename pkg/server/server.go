package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ardalan-sia/lanesim/pkg/traffic"
)

const (
	// DefaultStreamInterval matches the telemetry period.
	DefaultStreamInterval = 500 * time.Millisecond

	writeWait       = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Source is the read-only view of a running simulation.
type Source interface {
	Snapshot() traffic.Snapshot
	Ticks() uint64
	DensityPercent() int
}

// RoadView is the body of GET /v1/road and of every stream message.
type RoadView struct {
	Tick     uint64                 `json:"tick"`
	Density  int                    `json:"density"`
	Length   int                    `json:"length"`
	Taken    time.Time              `json:"taken"`
	Lane     string                 `json:"lane"`
	Vehicles []traffic.VehicleState `json:"vehicles"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the lane over HTTP.
type Server struct {
	Addr           string
	StreamInterval time.Duration

	source  Source
	metrics http.Handler
	log     *slog.Logger
	engine  *gin.Engine
}

// New builds the router. metrics may be nil, in which case /metrics is
// not registered.
func New(addr string, src Source, metrics http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		Addr:           addr,
		StreamInterval: DefaultStreamInterval,
		source:         src,
		metrics:        metrics,
		log:            log,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	v1 := r.Group("/v1")
	{
		v1.GET("/road", s.handleRoad)
		v1.GET("/road/stream", s.handleStream)
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

func (s *Server) view() RoadView {
	snap := s.source.Snapshot()
	return RoadView{
		Tick:     s.source.Ticks(),
		Density:  s.source.DensityPercent(),
		Length:   snap.Length,
		Taken:    snap.Taken,
		Lane:     snap.Lane(),
		Vehicles: snap.Vehicles,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tick": s.source.Ticks()})
}

func (s *Server) handleRoad(c *gin.Context) {
	c.JSON(http.StatusOK, s.view())
}

func (s *Server) handleStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	s.log.Debug("stream client connected", "remote", c.Request.RemoteAddr)

	// The reader only notices the close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.StreamInterval
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(s.view()); err != nil {
			s.log.Debug("stream write failed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-gone:
			s.log.Debug("stream client disconnected")
			return
		case <-ticker.C:
		}
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		// Streams are hijacked and outlive Shutdown; tie them to ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("status server stopped")
	return nil
}

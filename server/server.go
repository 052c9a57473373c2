// Package server segments frames sent by websocket clients. Every
// connection owns its own engine, and frames from one connection are
// processed in order on that connection's read goroutine.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/logger"
	"github.com/teranos/vidmask/segment"
	"github.com/teranos/vidmask/sym"
)

// EngineSettings is what a client asks for in segment_init
type EngineSettings struct {
	Pipeline         segment.Pipeline
	MaskType         segment.MaskType
	SegmentationMode segment.SegmentationMode
	BlurMode         segment.BlurMode
}

// EngineFactory starts an engine for one client
type EngineFactory func(EngineSettings) *segment.Engine

// Config configures a Server
type Config struct {
	// AllowedOrigins are matched as prefixes of the Origin header.
	// Requests without an Origin header are always accepted.
	AllowedOrigins []string
	// MaxClients caps concurrent connections; 0 means no cap
	MaxClients int
	// Defaults fill fields a segment_init message leaves empty
	Defaults EngineSettings
}

// Server upgrades HTTP requests to websocket sessions
type Server struct {
	cfg       Config
	newEngine EngineFactory
	log       *zap.SugaredLogger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	// pending counts upgrades that hold a slot but are not registered yet
	pending int
	closing bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a server that builds engines with factory
func New(cfg Config, factory EngineFactory, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		newEngine: factory,
		log:       logger.ChildLogger(log, logger.FieldSymbol, sym.Serve),
		clients:   map[string]*client{},
		ctx:       ctx,
		cancel:    cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler serves /ws and /healthz
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Segmentation server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return errors.Wrap(err, "shutdown")
}

var (
	errShuttingDown   = errors.New("server shutting down")
	errTooManyClients = errors.New("too many clients")
)

// Close disconnects every client and waits for their engines to close
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	s.cancel()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	s.log.Warnw("Rejected websocket origin", "origin", origin)
	return false
}

// reserve claims a client slot. A reservation holds one wait group count
// until it is registered or released, so Close waits for it.
func (s *Server) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return errShuttingDown
	}
	if limit := s.cfg.MaxClients; limit > 0 && len(s.clients)+s.pending >= limit {
		return errTooManyClients
	}
	s.pending++
	s.wg.Add(1)
	return nil
}

// register turns a reservation into a connected client. It reports false
// when Close ran since the reservation was made.
func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.wg.Done()
	s.pending--
	if s.closing {
		return false
	}
	s.clients[c.id] = c
	s.wg.Add(2)
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.reserve(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release()
		// Upgrade already wrote the HTTP error.
		s.log.Debugw("Websocket upgrade failed", logger.FieldError, err)
		return
	}

	c := newClient(s, conn, uuid.NewString())
	if !s.register(c) {
		conn.Close()
		return
	}
	s.log.Infow("Client connected", "client_id", c.id, "remote", r.RemoteAddr)

	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		c.readPump()
	}()
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	s.log.Infow("Client disconnected", "client_id", c.id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

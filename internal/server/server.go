// Package server bridges the in-process message bus to the network: websocket
// clients receive every message published on the topic they ask for, encoded
// as JSON envelopes.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/observability/metrics"
	"github.com/zeusync/simsensors/internal/core/transport"
)

// Config holds bridge configuration
type Config struct {
	ListenAddr string
	// ClientBuffer is the number of messages queued per client before new
	// messages for that client are dropped.
	ClientBuffer int
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8090",
		ClientBuffer: 256,
		WriteTimeout: 5 * time.Second,
	}
}

// Server is the websocket bridge.
type Server struct {
	config Config
	node   *transport.Node
	logger log.Log

	httpServer *http.Server
	listener   net.Listener

	clientCount int64 // atomic
	// clientsMu orders clientsWG.Add against Stop closing the server.
	clientsMu sync.Mutex
	clientsWG sync.WaitGroup

	running  int32 // atomic bool
	closed   int32 // atomic bool
	stopChan chan struct{}
}

func NewServer(config Config, node *transport.Node, logger log.Log) *Server {
	def := DefaultServerConfig()
	if config.ClientBuffer <= 0 {
		config.ClientBuffer = def.ClientBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = log.Provide()
	}

	s := &Server{
		config:   config,
		node:     node,
		logger:   logger.With(log.String("component", "bridge")),
		stopChan: make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler serves /ws, /topics, /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/topics", s.handleTopics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return errors.Wrapf(ErrListenerFailed, "listen on %s: %v", s.config.ListenAddr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Bridge stopped serving", log.Error(err))
		}
	}()

	s.logger.Info("Bridge listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down and disconnects every websocket client.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping bridge")
	s.clientsMu.Lock()
	atomic.StoreInt32(&s.closed, 1)
	close(s.stopChan)
	s.clientsMu.Unlock()

	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.clientsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "waiting for websocket clients")
	}

	s.logger.Info("Bridge stopped")
	return err
}

// trackClient registers a client with Stop's wait group. It fails once the
// server is closed.
func (s *Server) trackClient() bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if atomic.LoadInt32(&s.closed) == 1 {
		return false
	}
	s.clientsWG.Add(1)
	return true
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int64 {
	return atomic.LoadInt64(&s.clientCount)
}

type topicResponse struct {
	Name        string `json:"name"`
	MessageType string `json:"message_type"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleTopics(w http.ResponseWriter, _ *http.Request) {
	topics := s.node.Topics()
	out := make([]topicResponse, 0, len(topics))
	for _, t := range topics {
		out = append(out, topicResponse{Name: t.Name, MessageType: t.MessageType, Subscribers: t.Subs})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Debug("Failed to write topic list", log.Error(err))
	}
}

package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/simsensors/internal/core/msgs"
	"github.com/zeusync/simsensors/internal/core/observability/log"
	"github.com/zeusync/simsensors/internal/core/observability/metrics"
	"github.com/zeusync/simsensors/internal/core/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebSocket streams messages to the client. ?topic= selects one topic;
// without it the client receives everything on the bus.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic != "" {
		fq, err := transport.FullyQualifiedTopic(s.node.Namespace(), topic)
		if err != nil {
			http.Error(w, errors.Wrap(ErrInvalidTopic, err.Error()).Error(), http.StatusBadRequest)
			return
		}
		topic = fq
	}

	if !s.trackClient() {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.clientsWG.Done()

	// Subscribe before the handshake completes so nothing published after the
	// client sees the upgrade is missed.
	out := make(chan []byte, s.config.ClientBuffer)
	sub, err := s.node.SubscribeAll(func(t string, m msgs.Message) {
		if topic != "" && t != topic {
			return
		}
		data, err := msgs.Marshal(t, m)
		if err != nil {
			s.logger.Debug("Failed to encode message", log.String("topic", t), log.Error(err))
			return
		}
		select {
		case out <- data:
		default:
			metrics.BridgeMessageDropped()
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer func() { _ = sub.Cancel() }()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", log.Error(err))
		return
	}

	clientLogger := s.logger.With(
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.String("topic", topic),
	)
	total := atomic.AddInt64(&s.clientCount, 1)
	metrics.BridgeClientConnected()
	clientLogger.Info("Client connected", log.Int64("total_clients", total))

	defer func() {
		_ = conn.Close()
		total := atomic.AddInt64(&s.clientCount, -1)
		metrics.BridgeClientDisconnected()
		clientLogger.Info("Client disconnected", log.Int64("total_clients", total))
	}()

	if err := s.writeLoop(conn, out); err != nil {
		clientLogger.Debug("Client write loop ended", log.Error(err))
	}
}

// writeLoop forwards queued messages until the client goes away or the server
// stops. The read side only watches for the close.
func (s *Server) writeLoop(conn *websocket.Conn, out <-chan []byte) error {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return errors.Wrap(err, "write message")
			}
		case <-readerDone:
			return nil
		case <-s.stopChan:
			deadline := time.Now().Add(s.config.WriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping")
			if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				return errors.Wrap(err, "write close")
			}
			return nil
		}
	}
}

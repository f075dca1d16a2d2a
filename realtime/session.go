// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowConsumer  = errors.New("subscriber send buffer full")
)

// wsSession queues outbound frames for a single writer goroutine, so a slow
// peer only ever fills its own buffer.
type wsSession struct {
	id           string
	pollID       string
	conn         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	pingPeriod   time.Duration
	logger       *slog.Logger

	done        chan struct{}
	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newWSSession(id, pollID string, conn *websocket.Conn, buffer int, writeTimeout, pingPeriod time.Duration, logger *slog.Logger) *wsSession {
	return &wsSession{
		id:           id,
		pollID:       pollID,
		conn:         conn,
		send:         make(chan []byte, buffer),
		writeTimeout: writeTimeout,
		pingPeriod:   pingPeriod,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Send(ctx context.Context, data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case s.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close asks the writer to send a close frame and release the connection.
// Only the first call has an effect.
func (s *wsSession) Close(code int, reason string) error {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeReason = reason
		close(s.done)
	})
	return nil
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", "session_id", s.id, "poll_id", s.pollID, "error", err)
				s.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-s.done:
			if s.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(s.closeCode, s.closeReason)
				s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
			}
			return
		}
	}
}

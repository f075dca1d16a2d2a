// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteTimeout   time.Duration
}

// Handler upgrades subscribe requests and keeps each session registered for
// as long as its connection lives.
type Handler struct {
	registry     *Registry
	upgrader     websocket.Upgrader
	sendBuffer   int
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewHandler(registry *Registry, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 16
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		sendBuffer:   opts.SendBuffer,
		writeTimeout: opts.WriteTimeout,
		logger:       logger,
	}
}

// Subscribe handles GET /ws/polls/{pollId}
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.logger.Warn("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}

	pollID, ok := ExtractPollID(r.URL.Path)
	if !ok {
		msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, "invalid poll id")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
		conn.Close()
		h.logger.Warn("subscribe rejected", "path", r.URL.Path, "reason", "invalid poll id")
		return
	}

	s := newWSSession(uuid.NewString(), pollID, conn, h.sendBuffer, h.writeTimeout, pingPeriod, h.logger)
	h.registry.Join(pollID, s)
	h.logger.Info("session connected", "session_id", s.id, "poll_id", pollID)

	go s.writePump()
	h.readPump(s)
}

// readPump runs until the connection fails or the session is closed, then
// unregisters the session.
func (h *Handler) readPump(s *wsSession) {
	reason := "closed"
	defer func() {
		h.registry.Leave(s.pollID, s)
		s.Close(websocket.CloseAbnormalClosure, reason)
		h.logger.Info("session disconnected", "session_id", s.id, "poll_id", s.pollID, "reason", reason)
	}()

	s.conn.SetReadLimit(maxInboundSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("transport error", "session_id", s.id, "poll_id", s.pollID, "error", err)
				reason = "transport error"
			}
			return
		}
		h.logger.Debug("message received", "session_id", s.id, "payload", string(data))
	}
}

// ExtractPollID returns the canonical poll id from the last path segment.
func ExtractPollID(path string) (string, bool) {
	path = strings.TrimRight(path, "/")
	candidate := path[strings.LastIndex(path, "/")+1:]
	id, err := uuid.Parse(candidate)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no Origin
		return origin == "" || set[origin]
	}
}

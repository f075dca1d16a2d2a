// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
)

// Dispatcher pushes messages to every session subscribed to a poll.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Broadcast serializes msg once and sends it to the poll's sessions. A
// session whose send fails is evicted and closed; the others still receive
// the message. It returns how many sessions were reached.
func (d *Dispatcher) Broadcast(ctx context.Context, pollID string, msg any) (int, error) {
	sessions := d.registry.Snapshot(pollID)
	if len(sessions) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("failed to serialize broadcast", "poll_id", pollID, "error", err)
		return 0, fmt.Errorf("serialize broadcast for poll %s: %w", pollID, err)
	}

	sent := 0
	for _, s := range sessions {
		if err := s.Send(ctx, data); err != nil {
			d.logger.Warn("send failed, evicting session",
				"poll_id", pollID,
				"session_id", s.ID(),
				"error", err,
			)
			d.registry.Leave(pollID, s)
			s.Close(websocket.CloseGoingAway, "send failed")
			continue
		}
		sent++
	}

	d.logger.Info("sent update", "poll_id", pollID, "sessions", sent, "evicted", len(sessions)-sent)
	return sent, nil
}

// Disconnect drops the poll's registry entry and closes its sessions.
func (d *Dispatcher) Disconnect(pollID string, code int, reason string) int {
	sessions := d.registry.Drop(pollID)
	for _, s := range sessions {
		s.Close(code, reason)
	}
	if len(sessions) > 0 {
		d.logger.Info("poll subscribers disconnected", "poll_id", pollID, "sessions", len(sessions), "reason", reason)
	}
	return len(sessions)
}

// Shutdown closes every registered session.
func (d *Dispatcher) Shutdown() int {
	sessions := d.registry.DropAll()
	for _, s := range sessions {
		s.Close(websocket.CloseGoingAway, "server shutting down")
	}
	return len(sessions)
}

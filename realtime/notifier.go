// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/livepoll/events"
	"github.com/danielhkuo/livepoll/models"
)

type OptionReader interface {
	GetOption(ctx context.Context, id string) (models.Option, error)
}

// Notifier turns committed domain events into subscriber messages.
type Notifier struct {
	options    OptionReader
	registry   *Registry
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewNotifier(options OptionReader, registry *Registry, dispatcher *Dispatcher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{options: options, registry: registry, dispatcher: dispatcher, logger: logger}
}

// Handle is an events.Handler.
func (n *Notifier) Handle(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.VoteCast:
		return n.voteCast(ctx, e)
	case events.PollDeleted:
		n.dispatcher.Disconnect(e.PollID, websocket.CloseNormalClosure, "poll deleted")
		return nil
	default:
		n.logger.Debug("ignoring event", "type", fmt.Sprintf("%T", ev), "key", ev.Key())
		return nil
	}
}

func (n *Notifier) voteCast(ctx context.Context, e events.VoteCast) error {
	if n.registry.Len(e.PollID) == 0 {
		return nil
	}

	// the committed counter, read after the vote transaction
	opt, err := n.options.GetOption(ctx, e.OptionID)
	if err != nil {
		return fmt.Errorf("load option %s for vote update: %w", e.OptionID, err)
	}

	msg := models.Message{
		Type: models.MessageVoteUpdated,
		Payload: models.VoteUpdate{
			ID:    opt.ID,
			Text:  opt.Text,
			Votes: opt.Votes,
		},
		Timestamp: models.FormatTime(e.At),
	}

	_, err = n.dispatcher.Broadcast(ctx, e.PollID, msg)
	return err
}

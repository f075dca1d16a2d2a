// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import "time"

// Event is a transient domain notification. Events with the same Key are
// handled one at a time, in publish order.
type Event interface {
	Key() string
}

// VoteCast is published once per committed vote.
type VoteCast struct {
	PollID   string
	OptionID string
	At       time.Time
}

func (e VoteCast) Key() string { return e.PollID }

// PollDeleted is published after a poll and its options are removed.
type PollDeleted struct {
	PollID string
	At     time.Time
}

func (e PollDeleted) Key() string { return e.PollID }

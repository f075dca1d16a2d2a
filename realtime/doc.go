// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package realtime pushes live vote updates to WebSocket subscribers.

# Sessions

A client subscribes with

	GET /ws/polls/{pollId}

The last path segment must parse as a UUID. Otherwise the connection is
closed right after the upgrade with close code 1002 and is never
registered. A registered session stays in the Registry until its
connection closes, fails, or the server shuts down:

	CONNECTING → SUBSCRIBED(pollId) → CLOSED

# Registry

Registry maps poll ids to session sets. Poll ids are hashed onto shards,
each with its own lock, so joins, leaves and snapshots for unrelated polls
do not contend. Empty sets are removed.

# Dispatch

Dispatcher.Broadcast marshals a message once and sends the same bytes to
every session in the poll's snapshot. Sends never block: each session has
a bounded queue drained by its own writer goroutine. A failed send (closed
session or full queue) evicts that session only.

Notifier is the event bus handler. For each committed vote it re-reads the
option and broadcasts:

	{"type":"VOTE_UPDATED","payload":{"id":"...","text":"...","votes":3},"timestamp":"..."}
*/
package realtime

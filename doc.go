// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the livepoll API server.

livepoll runs time-boxed polls: clients create a poll with at least three
options, vote while it is in progress, and watch vote counts change live
over a WebSocket.

# Starting the Server

With no configuration the server listens on :8080 and stores data in a
local SQLite file:

	go run .

Against PostgreSQL:

	DATABASE_TYPE=postgres DATABASE_URL=postgres://... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

A .env file in the working directory is loaded first. Variables already
set in the environment take precedence.

# Configuration

  - PORT (-p): server port (default 8080)
  - DATABASE_TYPE (-t): sqlite or postgres (default sqlite)
  - DATABASE_URL (-d): connection string (required for postgres)
  - APP_ENV (-env): local logs text at debug level, anything else JSON
  - ALLOWED_ORIGINS (-origins): comma separated, "*" allows any
  - WS_SEND_BUFFER (-send-buffer): queued messages per session
  - WS_WRITE_TIMEOUT (-write-timeout): per message write deadline
  - BUS_WORKERS (-bus-workers), BUS_QUEUE (-bus-queue): event bus sizing

# Architecture

  - polls: poll lifecycle and vote counting
  - store: SQL persistence of polls and options
  - events: in-process event bus, per-poll ordering
  - realtime: WebSocket sessions, registry and broadcast
  - handlers: HTTP request handlers
  - router: route definitions using Go 1.22+ routing
  - middleware: request ids, logging, CORS, JSON helpers
  - models: request, response and domain types
  - db: connection setup and schema creation
  - cliparse: configuration parsing

# Shutdown

SIGINT or SIGTERM stops accepting HTTP requests, closes every WebSocket
session with 1001 (going away) and drains the event bus.

See package documentation for each component.
*/
package main

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	if err := cliparse.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags

	-p              Server port
	-d              Database URL
	-t              Database type (sqlite or postgres)
	-env            Environment name
	-origins        Allowed origins, comma separated
	-send-buffer    Per-subscriber send buffer
	-write-timeout  Websocket write timeout
	-bus-workers    Event bus workers
	-bus-queue      Event bus queue size per worker

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p              (default 8080)
	DATABASE_URL     → -d              (default file:livepoll.db)
	DATABASE_TYPE    → -t              (default sqlite)
	APP_ENV          → -env            (default local)
	ALLOWED_ORIGINS  → -origins        (default *)
	WS_SEND_BUFFER   → -send-buffer    (default 16)
	WS_WRITE_TIMEOUT → -write-timeout  (default 10s)
	BUS_WORKERS      → -bus-workers    (default 8)
	BUS_QUEUE        → -bus-queue      (default 1024)

CLI flags take precedence over environment variables, and variables
already in the environment take precedence over .env files.

# Validation

ParseFlags returns an error when:

  - a numeric or duration variable does not parse
  - the database type is not sqlite or postgres
  - postgres is selected without a database URL
  - sizes or timeouts are not positive
*/
package cliparse

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Drivers

Open selects the driver from the configured database type:

  - sqlite: modernc.org/sqlite (pure Go). Foreign keys and a busy timeout
    are enabled through DSN pragmas and the pool is capped at one
    connection.
  - postgres: github.com/lib/pq

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - polls: question and time bounds (unix milliseconds)
  - options: option text, vote counter and position within the poll

# Relationships

	polls 1──* options

options.poll_id uses ON DELETE CASCADE.
*/
package db

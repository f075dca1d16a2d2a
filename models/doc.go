// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, domain, and socket message types.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: question, startsAt, endsAt, options
  - EditPollRequest: question, startsAt, endsAt (all optional)
  - AddOptionRequest: text

# Response Types

  - PollResponse: id, question, status, startsAt, endsAt, options
  - OptionResponse: id, text, votes
  - PageResponse: content plus paging metadata
  - ErrorResponse: error, message, fields

# Domain Types

  - Poll: question and time bounds, with its ordered options
  - Option: text and vote counter, owned by a poll id
  - PollFilter: list query (phase, page, size)

# Phase

A poll's phase is never stored. It is derived from its bounds:

	NOT_STARTED  now <  startsAt
	IN_PROGRESS  startsAt <= now < endsAt
	FINISHED     now >= endsAt

	phase := models.PhaseAt(poll.StartsAt, poll.EndsAt, time.Now())

# Socket Messages

Every successful vote is pushed to subscribers as:

	{"type":"VOTE_UPDATED","payload":{"id":"...","text":"B","votes":1},"timestamp":"2025-05-01T10:00:00.123Z"}
*/
package models

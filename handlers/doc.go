// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the livepoll API.

# Handler Types

PollHandler adapts polls.Service to HTTP:

	pollHandler := handlers.NewPollHandler(svc)

Request bodies and responses are JSON with camelCase keys. Instants are
RFC 3339 in UTC.

# Poll Lifecycle

	POST   /polls                              → CreatePoll (201)
	GET    /polls?status=&page=&size=          → ListPolls
	GET    /polls/{pollId}                     → GetPoll
	PUT    /polls/{pollId}                     → EditPoll
	DELETE /polls/{pollId}                     → DeletePoll (204)
	POST   /polls/{pollId}/options             → AddOption (201)
	DELETE /polls/{pollId}/options/{optionId}  → DeleteOption (204)
	POST   /polls/{pollId}/options/{optionId}/vote → Vote (204)

# Errors

	*polls.ValidationError           422 with a fields map
	polls.ErrNotFound                404
	polls.ErrInvalidState            409
	polls.ErrMinimumOptions          400
	polls.ErrInvalidDates            400
	malformed JSON                   400
	anything else                    500, logged with the request id
*/
package handlers

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the livepoll API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, subscriptions)

Request ids and CORS are applied around the mux by the caller.

# Endpoints

Health:

	GET /health

Polls:

	POST   /polls                              - Create poll with options
	GET    /polls?status=&page=&size=          - List polls
	GET    /polls/{pollId}                     - Poll with options
	PUT    /polls/{pollId}                     - Edit (NOT_STARTED only)
	DELETE /polls/{pollId}                     - Delete
	POST   /polls/{pollId}/options             - Add option (NOT_STARTED only)
	DELETE /polls/{pollId}/options/{optionId}  - Delete option (NOT_STARTED only)

Voting:

	POST /polls/{pollId}/options/{optionId}/vote - Cast one vote (IN_PROGRESS only)

Live updates (WebSocket):

	GET /ws/polls/{pollId}
*/
package router

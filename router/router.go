// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/livepoll/handlers"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/polls"
	"github.com/danielhkuo/livepoll/realtime"
)

func NewRouter(svc *polls.Service, subscriptions *realtime.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	pollHandler := handlers.NewPollHandler(svc)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Poll lifecycle
	mux.HandleFunc("POST /polls", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("GET /polls", middleware.WithLogging(pollHandler.ListPolls))
	mux.HandleFunc("GET /polls/{pollId}", middleware.WithLogging(pollHandler.GetPoll))
	mux.HandleFunc("PUT /polls/{pollId}", middleware.WithLogging(pollHandler.EditPoll))
	mux.HandleFunc("DELETE /polls/{pollId}", middleware.WithLogging(pollHandler.DeletePoll))
	mux.HandleFunc("POST /polls/{pollId}/options", middleware.WithLogging(pollHandler.AddOption))
	mux.HandleFunc("DELETE /polls/{pollId}/options/{optionId}", middleware.WithLogging(pollHandler.DeleteOption))

	// Voting
	mux.HandleFunc("POST /polls/{pollId}/options/{optionId}/vote", middleware.WithLogging(pollHandler.Vote))

	// Live updates
	mux.HandleFunc("GET /ws/polls/{pollId}", middleware.WithLogging(subscriptions.Subscribe))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("livepoll API v1"))
	})

	return mux
}

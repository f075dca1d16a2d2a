// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request IDs

WithRequestID reads X-Request-ID or generates a UUID, echoes it in the
response and stores a logger carrying request_id in the request context:

	middleware.Logger(r.Context()).Info("poll created", "poll_id", id)

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /polls", middleware.WithLogging(handler))

Logs completion with method, path, status and duration_ms. 5xx responses
are logged at error level. The status recorder forwards Hijack, so the
WebSocket route can be wrapped too.

# CORS Middleware

CORS is backed by github.com/rs/cors and allows the configured origins:

	handler := middleware.CORS(cfg.AllowedOrigins)(mux)

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
	middleware.ValidationResponse(w, map[string]string{"question": "..."})

Parse JSON request bodies:

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

GetClientIP honours X-Forwarded-For and X-Real-IP before RemoteAddr.
*/
package middleware

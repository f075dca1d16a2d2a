// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/polls"
)

type PollHandler struct {
	svc *polls.Service
}

func NewPollHandler(svc *polls.Service) *PollHandler {
	return &PollHandler{svc: svc}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.svc.CreatePoll(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.Logger(r.Context()).Info("poll created", "poll_id", poll.ID, "options", len(poll.Options))
	middleware.JSONResponse(w, http.StatusCreated, poll.ToResponse(h.svc.Now()))
}

// ListPolls handles GET /polls?status=&page=&size=
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}

	var phase models.Phase
	if s := q.Get("status"); s != "" {
		p, ok := models.ParsePhase(s)
		if !ok {
			fields["status"] = "Must be one of NOT_STARTED, IN_PROGRESS, FINISHED"
		}
		phase = p
	}

	page := 0
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			fields["page"] = "Must be a non-negative integer"
		}
		page = n
	}

	size := models.DefaultPageSize
	if s := q.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > models.MaxPageSize {
			fields["size"] = "Must be between 1 and 100"
		}
		size = n
	}

	if len(fields) > 0 {
		middleware.ValidationResponse(w, fields)
		return
	}

	result, err := h.svc.ListPolls(r.Context(), phase, page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// GetPoll handles GET /polls/{pollId}
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.svc.GetPoll(r.Context(), r.PathValue("pollId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, poll.ToResponse(h.svc.Now()))
}

// EditPoll handles PUT /polls/{pollId}
func (h *PollHandler) EditPoll(w http.ResponseWriter, r *http.Request) {
	var req models.EditPollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.svc.EditPoll(r.Context(), r.PathValue("pollId"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.Logger(r.Context()).Info("poll edited", "poll_id", poll.ID)
	middleware.JSONResponse(w, http.StatusOK, poll.ToResponse(h.svc.Now()))
}

// DeletePoll handles DELETE /polls/{pollId}
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollId")
	if err := h.svc.DeletePoll(r.Context(), pollID); err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.Logger(r.Context()).Info("poll deleted", "poll_id", pollID)
	w.WriteHeader(http.StatusNoContent)
}

// AddOption handles POST /polls/{pollId}/options
func (h *PollHandler) AddOption(w http.ResponseWriter, r *http.Request) {
	var req models.AddOptionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	pollID := r.PathValue("pollId")
	opt, err := h.svc.AddOption(r.Context(), pollID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.Logger(r.Context()).Info("option added", "poll_id", pollID, "option_id", opt.ID)
	middleware.JSONResponse(w, http.StatusCreated, opt.ToResponse())
}

// DeleteOption handles DELETE /polls/{pollId}/options/{optionId}
func (h *PollHandler) DeleteOption(w http.ResponseWriter, r *http.Request) {
	pollID, optionID := r.PathValue("pollId"), r.PathValue("optionId")
	if err := h.svc.DeleteOption(r.Context(), pollID, optionID); err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.Logger(r.Context()).Info("option deleted", "poll_id", pollID, "option_id", optionID)
	w.WriteHeader(http.StatusNoContent)
}

// Vote handles POST /polls/{pollId}/options/{optionId}/vote
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	pollID, optionID := r.PathValue("pollId"), r.PathValue("optionId")
	if err := h.svc.Vote(r.Context(), pollID, optionID); err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.Logger(r.Context()).Debug("vote cast", "poll_id", pollID, "option_id", optionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PollHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *polls.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.ValidationResponse(w, ve.Fields)
	case errors.Is(err, polls.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, polls.ErrInvalidState):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, polls.ErrMinimumOptions), errors.Is(err, polls.ErrInvalidDates):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		middleware.Logger(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/danielhkuo/livepoll/events"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/store"
)

// Publisher receives events once the change they describe is committed.
type Publisher interface {
	Publish(ev events.Event) bool
}

type Service struct {
	store     *store.Store
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewService wires the poll operations. now defaults to time.Now.
func NewService(st *store.Store, publisher Publisher, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, publisher: publisher, now: now, logger: logger}
}

// Now is the service clock, truncated to the stored precision.
func (s *Service) Now() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidState}, args...)...)
}

func pollNotFound(id string) error {
	return notFoundf("poll with id %s does not exist", id)
}

func optionNotFound(id string) error {
	return notFoundf("option with id %s does not exist", id)
}

// CreatePoll stores the poll and its initial options in one transaction.
func (s *Service) CreatePoll(ctx context.Context, req models.CreatePollRequest) (models.Poll, error) {
	const op = "polls.CreatePoll"

	now := s.Now()
	v := validator{}
	question := strings.TrimSpace(req.Question)
	v.check(question != "", "question", "The question cannot be blank")
	v.check(utf8.RuneCountInString(req.Question) <= models.MaxQuestionLength, "question", "The question cannot be longer than 2000 characters")
	v.check(req.StartsAt != nil, "startsAt", "The start date is required")
	v.check(req.EndsAt != nil, "endsAt", "The end date is required")
	if req.StartsAt != nil {
		v.check(!req.StartsAt.Truncate(time.Millisecond).Before(now), "startsAt", "The poll cannot start in the past")
	}
	if req.EndsAt != nil {
		v.check(!req.EndsAt.Truncate(time.Millisecond).Before(now), "endsAt", "The poll cannot end in the past")
	}
	if req.StartsAt != nil && req.EndsAt != nil {
		v.check(req.EndsAt.After(*req.StartsAt), "endsAt", "The end date must be after the start date")
	}
	v.check(len(req.Options) >= models.MinOptions, "options", "The poll must have at least 3 options")
	for i, text := range req.Options {
		v.check(strings.TrimSpace(text) != "", fmt.Sprintf("options[%d]", i), "The option cannot be blank")
	}
	if err := v.err(); err != nil {
		return models.Poll{}, err
	}

	poll := models.Poll{
		ID:        uuid.NewString(),
		Question:  question,
		StartsAt:  req.StartsAt.UTC().Truncate(time.Millisecond),
		EndsAt:    req.EndsAt.UTC().Truncate(time.Millisecond),
		CreatedAt: now,
	}
	for i, text := range req.Options {
		poll.Options = append(poll.Options, models.Option{
			ID:       uuid.NewString(),
			PollID:   poll.ID,
			Text:     strings.TrimSpace(text),
			Position: i,
		})
	}

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		if err := tx.InsertPoll(ctx, poll); err != nil {
			return err
		}
		for _, o := range poll.Options {
			if err := tx.InsertOption(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

// GetPoll returns the poll with its options.
func (s *Service) GetPoll(ctx context.Context, id string) (models.Poll, error) {
	const op = "polls.GetPoll"

	poll, err := s.store.GetPoll(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrPollNotFound) {
			return models.Poll{}, pollNotFound(id)
		}
		return models.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	poll.Options, err = s.store.ListOptions(ctx, id)
	if err != nil {
		return models.Poll{}, fmt.Errorf("%s: %w", op, err)
	}
	return poll, nil
}

// ListPolls returns one page of polls, optionally only those in phase.
func (s *Service) ListPolls(ctx context.Context, phase models.Phase, page, size int) (models.PageResponse[models.PollResponse], error) {
	const op = "polls.ListPolls"

	now := s.Now()
	polls, total, err := s.store.ListPolls(ctx, models.PollFilter{Phase: phase, Now: now, Page: page, Size: size})
	if err != nil {
		return models.PageResponse[models.PollResponse]{}, fmt.Errorf("%s: %w", op, err)
	}

	ids := make([]string, len(polls))
	for i, p := range polls {
		ids[i] = p.ID
	}
	options, err := s.store.ListOptionsByPolls(ctx, ids)
	if err != nil {
		return models.PageResponse[models.PollResponse]{}, fmt.Errorf("%s: %w", op, err)
	}

	content := make([]models.PollResponse, 0, len(polls))
	for _, p := range polls {
		p.Options = options[p.ID]
		content = append(content, p.ToResponse(now))
	}
	return models.NewPage(content, page, size, total), nil
}

// EditPoll changes the question or bounds of a poll that has not started.
func (s *Service) EditPoll(ctx context.Context, id string, req models.EditPollRequest) (models.Poll, error) {
	const op = "polls.EditPoll"

	v := validator{}
	if req.Question != nil {
		v.check(strings.TrimSpace(*req.Question) != "", "question", "The question cannot be blank")
		v.check(utf8.RuneCountInString(*req.Question) <= models.MaxQuestionLength, "question", "The question cannot be longer than 2000 characters")
	}
	now := s.Now()
	if req.StartsAt != nil {
		v.check(!req.StartsAt.Truncate(time.Millisecond).Before(now), "startsAt", "The poll cannot start in the past")
	}
	if req.EndsAt != nil {
		v.check(!req.EndsAt.Truncate(time.Millisecond).Before(now), "endsAt", "The poll cannot end in the past")
	}
	if err := v.err(); err != nil {
		return models.Poll{}, err
	}

	var poll models.Poll
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		var err error
		poll, err = tx.GetPollForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrPollNotFound) {
				return pollNotFound(id)
			}
			return err
		}

		if poll.PhaseAt(s.Now()) != models.PhaseNotStarted {
			return invalidStatef("poll cannot be edited after it has started")
		}

		if req.Question != nil {
			poll.Question = strings.TrimSpace(*req.Question)
		}
		if req.StartsAt != nil {
			poll.StartsAt = req.StartsAt.UTC().Truncate(time.Millisecond)
		}
		if req.EndsAt != nil {
			poll.EndsAt = req.EndsAt.UTC().Truncate(time.Millisecond)
		}
		if !poll.EndsAt.After(poll.StartsAt) {
			return ErrInvalidDates
		}

		if err := tx.UpdatePoll(ctx, poll); err != nil {
			return err
		}
		poll.Options, err = tx.ListOptions(ctx, id)
		return err
	})
	if err != nil {
		return models.Poll{}, wrapDomain(op, err)
	}

	return poll, nil
}

// AddOption appends an option to a poll that has not started.
func (s *Service) AddOption(ctx context.Context, pollID string, req models.AddOptionRequest) (models.Option, error) {
	const op = "polls.AddOption"

	text := strings.TrimSpace(req.Text)
	v := validator{}
	v.check(text != "", "text", "The option cannot be blank")
	if err := v.err(); err != nil {
		return models.Option{}, err
	}

	opt := models.Option{ID: uuid.NewString(), PollID: pollID, Text: text}
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		poll, err := tx.GetPollForUpdate(ctx, pollID)
		if err != nil {
			if errors.Is(err, store.ErrPollNotFound) {
				return pollNotFound(pollID)
			}
			return err
		}

		if poll.PhaseAt(s.Now()) != models.PhaseNotStarted {
			return invalidStatef("options cannot be added after the poll has started")
		}

		if opt.Position, err = tx.NextPosition(ctx, pollID); err != nil {
			return err
		}
		return tx.InsertOption(ctx, opt)
	})
	if err != nil {
		return models.Option{}, wrapDomain(op, err)
	}

	return opt, nil
}

// DeleteOption removes an option from a poll that has not started, as long
// as more than the minimum number of options remain.
func (s *Service) DeleteOption(ctx context.Context, pollID, optionID string) error {
	const op = "polls.DeleteOption"

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		poll, err := tx.GetPollForUpdate(ctx, pollID)
		if err != nil {
			if errors.Is(err, store.ErrPollNotFound) {
				return pollNotFound(pollID)
			}
			return err
		}

		if poll.PhaseAt(s.Now()) != models.PhaseNotStarted {
			return invalidStatef("options cannot be deleted after the poll has started")
		}

		count, err := tx.CountOptions(ctx, pollID)
		if err != nil {
			return err
		}
		if count <= models.MinOptions {
			return ErrMinimumOptions
		}

		opt, err := tx.GetOption(ctx, optionID)
		if err != nil {
			if errors.Is(err, store.ErrOptionNotFound) {
				return optionNotFound(optionID)
			}
			return err
		}
		if opt.PollID != pollID {
			return notFoundf("option with id %s does not belong to poll with id %s", optionID, pollID)
		}

		return tx.DeleteOption(ctx, pollID, optionID)
	})
	return wrapDomain(op, err)
}

// DeletePoll removes the poll and its options at any phase. Subscribers are
// notified once the deletion is committed.
func (s *Service) DeletePoll(ctx context.Context, id string) error {
	const op = "polls.DeletePoll"

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		err := tx.DeletePoll(ctx, id)
		if errors.Is(err, store.ErrPollNotFound) {
			return pollNotFound(id)
		}
		return err
	})
	if err != nil {
		return wrapDomain(op, err)
	}

	s.publish(events.PollDeleted{PollID: id, At: s.Now()})
	return nil
}

// Vote adds one vote to the option and publishes a VoteCast after the
// increment is committed. Nothing is published when any check fails.
func (s *Service) Vote(ctx context.Context, pollID, optionID string) error {
	const op = "polls.Vote"

	err := s.store.InTx(ctx, func(tx *store.Store) error {
		poll, err := tx.GetPoll(ctx, pollID)
		if err != nil {
			if errors.Is(err, store.ErrPollNotFound) {
				return pollNotFound(pollID)
			}
			return err
		}

		if poll.PhaseAt(s.Now()) != models.PhaseInProgress {
			return invalidStatef("poll not in progress")
		}

		opt, err := tx.GetOption(ctx, optionID)
		if err != nil {
			if errors.Is(err, store.ErrOptionNotFound) {
				return optionNotFound(optionID)
			}
			return err
		}
		if opt.PollID != pollID {
			return notFoundf("option with id %s does not belong to poll with id %s", optionID, pollID)
		}

		return tx.IncrementVotes(ctx, pollID, optionID)
	})
	if err != nil {
		return wrapDomain(op, err)
	}

	s.publish(events.VoteCast{PollID: pollID, OptionID: optionID, At: s.Now()})
	return nil
}

func (s *Service) publish(ev events.Event) {
	if s.publisher == nil {
		return
	}
	if !s.publisher.Publish(ev) {
		s.logger.Warn("event not published", "type", fmt.Sprintf("%T", ev), "poll_id", ev.Key())
	}
}

// wrapDomain leaves domain errors untouched so callers can show their
// message, and prefixes everything else with the operation.
func wrapDomain(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrMinimumOptions) || errors.Is(err, ErrInvalidDates) ||
		errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/livepoll/events"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/polls"
	"github.com/danielhkuo/livepoll/store"
	"github.com/danielhkuo/livepoll/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type fixture struct {
	svc   *polls.Service
	store *store.Store
	clock *testutil.Clock
	pub   *recordingPublisher
}

func setup(t *testing.T) fixture {
	t.Helper()
	st := testutil.SetupTestStore(t)
	clock := testutil.NewClock()
	pub := &recordingPublisher{}
	return fixture{
		svc:   polls.NewService(st, pub, clock.Now, nil),
		store: st,
		clock: clock,
		pub:   pub,
	}
}

func ptr[T any](v T) *T { return &v }

func (f fixture) activePoll(t *testing.T, texts ...string) models.Poll {
	t.Helper()
	now := f.clock.Now()
	return testutil.CreateTestPoll(t, f.store, now.Add(-time.Minute), now.Add(time.Hour), texts...)
}

func (f fixture) futurePoll(t *testing.T, texts ...string) models.Poll {
	t.Helper()
	now := f.clock.Now()
	return testutil.CreateTestPoll(t, f.store, now.Add(time.Hour), now.Add(2*time.Hour), texts...)
}

func validCreate(now time.Time) models.CreatePollRequest {
	return models.CreatePollRequest{
		Question: "Best language?",
		StartsAt: ptr(now.Add(time.Hour)),
		EndsAt:   ptr(now.Add(2 * time.Hour)),
		Options:  []string{"Go", "Rust", "Zig"},
	}
}

func TestCreatePoll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	poll, err := f.svc.CreatePoll(ctx, validCreate(f.clock.Now()))
	require.NoError(t, err)

	_, err = uuid.Parse(poll.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseNotStarted, poll.PhaseAt(f.clock.Now()))

	got, err := f.svc.GetPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, "Best language?", got.Question)
	require.Len(t, got.Options, 3)
	for i, text := range []string{"Go", "Rust", "Zig"} {
		assert.Equal(t, text, got.Options[i].Text)
		assert.Zero(t, got.Options[i].Votes)
	}
}

func TestCreatePoll_Validation(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()

	testCases := []struct {
		name   string
		mutate func(*models.CreatePollRequest)
		field  string
	}{
		{"blank question", func(r *models.CreatePollRequest) { r.Question = "   " }, "question"},
		{"long question", func(r *models.CreatePollRequest) { r.Question = strings.Repeat("a", 2001) }, "question"},
		{"missing start", func(r *models.CreatePollRequest) { r.StartsAt = nil }, "startsAt"},
		{"missing end", func(r *models.CreatePollRequest) { r.EndsAt = nil }, "endsAt"},
		{"start in past", func(r *models.CreatePollRequest) { r.StartsAt = ptr(now.Add(-time.Minute)) }, "startsAt"},
		{"end before start", func(r *models.CreatePollRequest) { r.EndsAt = ptr(now.Add(30 * time.Minute)) }, "endsAt"},
		{"end equals start", func(r *models.CreatePollRequest) { r.EndsAt = r.StartsAt }, "endsAt"},
		{"two options", func(r *models.CreatePollRequest) { r.Options = r.Options[:2] }, "options"},
		{"blank option", func(r *models.CreatePollRequest) { r.Options[1] = " " }, "options[1]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreate(now)
			tc.mutate(&req)

			_, err := f.svc.CreatePoll(context.Background(), req)

			var ve *polls.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
}

func TestCreatePoll_StartingNowIsAllowed(t *testing.T) {
	f := setup(t)
	req := validCreate(f.clock.Now())
	req.StartsAt = ptr(f.clock.Now())

	poll, err := f.svc.CreatePoll(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseInProgress, poll.PhaseAt(f.clock.Now()))
}

func TestGetPoll_NotFound(t *testing.T) {
	f := setup(t)

	_, err := f.svc.GetPoll(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, polls.ErrNotFound)
}

func TestListPolls_FiltersByPhase(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()
	ctx := context.Background()

	f.futurePoll(t)
	f.activePoll(t)
	f.activePoll(t)
	testutil.CreateTestPoll(t, f.store, now.Add(-2*time.Hour), now.Add(-time.Hour))

	all, err := f.svc.ListPolls(ctx, "", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.TotalElements)

	active, err := f.svc.ListPolls(ctx, models.PhaseInProgress, 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, active.TotalElements)
	for _, p := range active.Content {
		assert.Equal(t, models.PhaseInProgress, p.Status)
		assert.Len(t, p.Options, 3)
	}

	page, err := f.svc.ListPolls(ctx, "", 1, 3)
	require.NoError(t, err)
	assert.Len(t, page.Content, 1)
	assert.Equal(t, 2, page.TotalPages)
}

func TestVote_IncrementsAndPublishesAfterCommit(t *testing.T) {
	f := setup(t)
	poll := f.activePoll(t, "A", "B", "C")
	b := testutil.OptionByText(t, poll, "B")

	require.NoError(t, f.svc.Vote(context.Background(), poll.ID, b.ID))

	opt, err := f.store.GetOption(context.Background(), b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, opt.Votes)

	evs := f.pub.published()
	require.Len(t, evs, 1)
	vc, ok := evs[0].(events.VoteCast)
	require.True(t, ok)
	assert.Equal(t, poll.ID, vc.PollID)
	assert.Equal(t, b.ID, vc.OptionID)
}

func TestVote_Rejections(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()
	active := f.activePoll(t)
	other := f.activePoll(t)
	future := f.futurePoll(t)
	finished := testutil.CreateTestPoll(t, f.store, now.Add(-2*time.Hour), now.Add(-time.Hour))

	testCases := []struct {
		name     string
		pollID   string
		optionID string
		want     error
	}{
		{"unknown poll", uuid.NewString(), active.Options[0].ID, polls.ErrNotFound},
		{"unknown option", active.ID, uuid.NewString(), polls.ErrNotFound},
		{"option of another poll", active.ID, other.Options[0].ID, polls.ErrNotFound},
		{"not started", future.ID, future.Options[0].ID, polls.ErrInvalidState},
		{"finished", finished.ID, finished.Options[0].ID, polls.ErrInvalidState},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.Vote(context.Background(), tc.pollID, tc.optionID)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Empty(t, f.pub.published(), "rejected votes publish nothing")
	for _, p := range []models.Poll{active, other, future, finished} {
		opts, err := f.store.ListOptions(context.Background(), p.ID)
		require.NoError(t, err)
		for _, o := range opts {
			assert.Zero(t, o.Votes)
		}
	}
}

func TestVote_PhaseFollowsClock(t *testing.T) {
	f := setup(t)
	poll := f.futurePoll(t)
	opt := poll.Options[0]
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Vote(ctx, poll.ID, opt.ID), polls.ErrInvalidState)

	f.clock.Set(poll.StartsAt)
	assert.NoError(t, f.svc.Vote(ctx, poll.ID, opt.ID))

	f.clock.Set(poll.EndsAt)
	assert.ErrorIs(t, f.svc.Vote(ctx, poll.ID, opt.ID), polls.ErrInvalidState)
}

func TestVote_ConcurrentVotesAreNotLost(t *testing.T) {
	f := setup(t)
	poll := f.activePoll(t)
	opt := poll.Options[0]

	const voters = 300
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.Vote(context.Background(), poll.ID, opt.ID); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	got, err := f.store.GetOption(context.Background(), opt.ID)
	require.NoError(t, err)
	assert.EqualValues(t, voters, got.Votes)
	assert.Len(t, f.pub.published(), voters)
}

func TestEditPoll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	poll := f.futurePoll(t)

	edited, err := f.svc.EditPoll(ctx, poll.ID, models.EditPollRequest{
		Question: ptr("Renamed?"),
		EndsAt:   ptr(poll.EndsAt.Add(time.Hour)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed?", edited.Question)
	assert.Equal(t, poll.StartsAt, edited.StartsAt)
	assert.Equal(t, poll.EndsAt.Add(time.Hour), edited.EndsAt)
	assert.Len(t, edited.Options, 3)

	_, err = f.svc.EditPoll(ctx, poll.ID, models.EditPollRequest{EndsAt: ptr(poll.StartsAt.Add(-time.Minute))})
	assert.ErrorIs(t, err, polls.ErrInvalidDates)

	_, err = f.svc.EditPoll(ctx, poll.ID, models.EditPollRequest{StartsAt: ptr(f.clock.Now().Add(-time.Second))})
	var ve *polls.ValidationError
	assert.ErrorAs(t, err, &ve)

	active := f.activePoll(t)
	_, err = f.svc.EditPoll(ctx, active.ID, models.EditPollRequest{Question: ptr("x")})
	assert.ErrorIs(t, err, polls.ErrInvalidState)

	_, err = f.svc.EditPoll(ctx, uuid.NewString(), models.EditPollRequest{Question: ptr("x")})
	assert.ErrorIs(t, err, polls.ErrNotFound)
}

func TestAddOption(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	poll := f.futurePoll(t)

	opt, err := f.svc.AddOption(ctx, poll.ID, models.AddOptionRequest{Text: "Fourth"})
	require.NoError(t, err)
	assert.Equal(t, 3, opt.Position)

	got, err := f.svc.GetPoll(ctx, poll.ID)
	require.NoError(t, err)
	require.Len(t, got.Options, 4)
	assert.Equal(t, "Fourth", got.Options[3].Text)

	_, err = f.svc.AddOption(ctx, poll.ID, models.AddOptionRequest{Text: " "})
	var ve *polls.ValidationError
	assert.ErrorAs(t, err, &ve)

	active := f.activePoll(t)
	_, err = f.svc.AddOption(ctx, active.ID, models.AddOptionRequest{Text: "Late"})
	assert.ErrorIs(t, err, polls.ErrInvalidState)
}

func TestDeleteOption(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	poll := f.futurePoll(t, "A", "B", "C")

	err := f.svc.DeleteOption(ctx, poll.ID, poll.Options[0].ID)
	assert.ErrorIs(t, err, polls.ErrMinimumOptions)

	extra, err := f.svc.AddOption(ctx, poll.ID, models.AddOptionRequest{Text: "D"})
	require.NoError(t, err)

	other := f.futurePoll(t)
	err = f.svc.DeleteOption(ctx, poll.ID, other.Options[0].ID)
	assert.ErrorIs(t, err, polls.ErrNotFound)

	err = f.svc.DeleteOption(ctx, poll.ID, uuid.NewString())
	assert.ErrorIs(t, err, polls.ErrNotFound)

	require.NoError(t, f.svc.DeleteOption(ctx, poll.ID, extra.ID))
	count, err := f.store.CountOptions(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	active := f.activePoll(t, "A", "B", "C", "D")
	err = f.svc.DeleteOption(ctx, active.ID, active.Options[0].ID)
	assert.ErrorIs(t, err, polls.ErrInvalidState)
}

func TestDeletePoll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	poll := f.activePoll(t)

	require.NoError(t, f.svc.DeletePoll(ctx, poll.ID))

	_, err := f.svc.GetPoll(ctx, poll.ID)
	assert.ErrorIs(t, err, polls.ErrNotFound)

	evs := f.pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, events.PollDeleted{PollID: poll.ID, At: f.clock.Now()}, evs[0])

	assert.ErrorIs(t, f.svc.DeletePoll(ctx, poll.ID), polls.ErrNotFound)
	assert.Len(t, f.pub.published(), 1)
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/livepoll/events"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/polls"
	"github.com/danielhkuo/livepoll/realtime"
	"github.com/danielhkuo/livepoll/testutil"
)

type testApp struct {
	server   *httptest.Server
	handler  http.Handler
	clock    *testutil.Clock
	registry *realtime.Registry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := testutil.GetTestConfig()
	st := testutil.SetupTestStore(t)
	clock := testutil.NewClock()

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, nil)
	notifier := realtime.NewNotifier(st, registry, dispatcher, nil)
	bus := events.NewBus(notifier.Handle, cfg.BusWorkers, cfg.BusQueue, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()

	svc := polls.NewService(st, bus, clock.Now, nil)
	subscriptions := realtime.NewHandler(registry, realtime.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
	}, nil)

	handler := middleware.WithRequestID(middleware.CORS(cfg.AllowedOrigins)(NewRouter(svc, subscriptions)))
	srv := httptest.NewServer(handler)

	t.Cleanup(func() {
		dispatcher.Shutdown()
		srv.Close()
		cancel()
		<-done
	})

	return &testApp{server: srv, handler: handler, clock: clock, registry: registry}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, testutil.MakeRequest(method, path, body, nil))
	return w
}

func (a *testApp) createPoll(t *testing.T, options ...string) models.PollResponse {
	t.Helper()
	start := a.clock.Now().Add(time.Minute)
	w := a.do(t, "POST", "/polls", models.CreatePollRequest{
		Question: "Which one?",
		StartsAt: &start,
		EndsAt:   ptr(start.Add(time.Hour)),
		Options:  options,
	})
	testutil.AssertStatus(t, w, http.StatusCreated)

	var poll models.PollResponse
	testutil.AssertJSON(t, w, &poll)
	return poll
}

func (a *testApp) subscribe(t *testing.T, pollID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws/polls/" + pollID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func ptr[T any](v T) *T { return &v }

func optionID(t *testing.T, poll models.PollResponse, text string) string {
	t.Helper()
	for _, o := range poll.Options {
		if o.Text == text {
			return o.ID
		}
	}
	t.Fatalf("option %q not found", text)
	return ""
}

func expectNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", data)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "GET", "/health", nil)

	testutil.AssertStatus(t, w, http.StatusOK)
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "GET", "/", nil)

	testutil.AssertStatus(t, w, http.StatusOK)
	expected := "livepoll API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("Expected a request id header")
	}
}

func TestRouteExistence(t *testing.T) {
	app := newTestApp(t)
	id := uuid.NewString()

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/polls"},
		{"GET", "/polls"},
		{"GET", "/polls/" + id},
		{"PUT", "/polls/" + id},
		{"DELETE", "/polls/" + id},
		{"POST", "/polls/" + id + "/options"},
		{"DELETE", "/polls/" + id + "/options/" + id},
		{"POST", "/polls/" + id + "/options/" + id + "/vote"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := app.do(t, tc.method, tc.path, nil)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	app := newTestApp(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"PATCH", "/polls/abc"},
		{"GET", "/polls/abc/options/def/vote"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := app.do(t, tc.method, tc.path, nil)
			testutil.AssertStatus(t, w, http.StatusMethodNotAllowed)
		})
	}
}

func TestPollLifecycle(t *testing.T) {
	app := newTestApp(t)
	poll := app.createPoll(t, "A", "B", "C")
	assert.Equal(t, models.PhaseNotStarted, poll.Status)

	w := app.do(t, "POST", "/polls/"+poll.ID+"/options", models.AddOptionRequest{Text: "D"})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var added models.OptionResponse
	testutil.AssertJSON(t, w, &added)

	w = app.do(t, "PUT", "/polls/"+poll.ID, map[string]string{"question": "Which one, really?"})
	testutil.AssertStatus(t, w, http.StatusOK)

	w = app.do(t, "DELETE", "/polls/"+poll.ID+"/options/"+added.ID, nil)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	w = app.do(t, "DELETE", "/polls/"+poll.ID+"/options/"+optionID(t, poll, "A"), nil)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = app.do(t, "GET", "/polls/"+poll.ID, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.PollResponse
	testutil.AssertJSON(t, w, &got)
	assert.Equal(t, "Which one, really?", got.Question)
	assert.Len(t, got.Options, 3)

	app.clock.Advance(2 * time.Minute)

	w = app.do(t, "POST", "/polls/"+poll.ID+"/options", models.AddOptionRequest{Text: "E"})
	testutil.AssertStatus(t, w, http.StatusConflict)

	w = app.do(t, "GET", "/polls?status=IN_PROGRESS", nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var page models.PageResponse[models.PollResponse]
	testutil.AssertJSON(t, w, &page)
	require.Len(t, page.Content, 1)
	assert.Equal(t, models.PhaseInProgress, page.Content[0].Status)

	w = app.do(t, "DELETE", "/polls/"+poll.ID, nil)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	w = app.do(t, "GET", "/polls/"+poll.ID, nil)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestCreatePoll_ValidationErrors(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "POST", "/polls", map[string]interface{}{"question": "", "options": []string{"a"}})
	testutil.AssertStatus(t, w, http.StatusUnprocessableEntity)

	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	for _, field := range []string{"question", "startsAt", "endsAt", "options"} {
		assert.Contains(t, resp.Fields, field)
	}

	req := httptest.NewRequest("POST", "/polls", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestListPolls_QueryValidation(t *testing.T) {
	app := newTestApp(t)

	for _, q := range []string{"status=OPEN", "page=-1", "size=0", "size=101", "page=x"} {
		t.Run(q, func(t *testing.T) {
			w := app.do(t, "GET", "/polls?"+q, nil)
			testutil.AssertStatus(t, w, http.StatusUnprocessableEntity)
		})
	}

	w := app.do(t, "GET", "/polls", nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var page models.PageResponse[models.PollResponse]
	testutil.AssertJSON(t, w, &page)
	assert.Equal(t, models.DefaultPageSize, page.PageSize)
	assert.NotNil(t, page.Content)
}

func TestVoteBroadcastsToSubscribers(t *testing.T) {
	app := newTestApp(t)
	poll := app.createPoll(t, "A", "B", "C")
	other := app.createPoll(t, "X", "Y", "Z")
	app.clock.Advance(2 * time.Minute)

	first := app.subscribe(t, poll.ID)
	second := app.subscribe(t, poll.ID)
	bystander := app.subscribe(t, other.ID)
	require.Eventually(t, func() bool {
		return app.registry.Len(poll.ID) == 2 && app.registry.Len(other.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	b := optionID(t, poll, "B")
	w := app.do(t, "POST", "/polls/"+poll.ID+"/options/"+b+"/vote", nil)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type      string            `json:"type"`
			Payload   models.VoteUpdate `json:"payload"`
			Timestamp string            `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, models.MessageVoteUpdated, msg.Type)
		assert.Equal(t, b, msg.Payload.ID)
		assert.Equal(t, "B", msg.Payload.Text)
		assert.EqualValues(t, 1, msg.Payload.Votes)
		assert.Equal(t, models.FormatTime(app.clock.Now()), msg.Timestamp)

		expectNoMessage(t, conn)
	}

	expectNoMessage(t, bystander)
}

func TestVoteOnFuturePollIsRejectedSilently(t *testing.T) {
	app := newTestApp(t)
	poll := app.createPoll(t, "A", "B", "C")

	conn := app.subscribe(t, poll.ID)
	require.Eventually(t, func() bool { return app.registry.Len(poll.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	w := app.do(t, "POST", "/polls/"+poll.ID+"/options/"+optionID(t, poll, "A")+"/vote", nil)
	testutil.AssertStatus(t, w, http.StatusConflict)

	expectNoMessage(t, conn)
}

func TestVoteErrors(t *testing.T) {
	app := newTestApp(t)
	poll := app.createPoll(t, "A", "B", "C")
	other := app.createPoll(t, "X", "Y", "Z")
	app.clock.Advance(2 * time.Minute)

	testCases := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown poll", "/polls/" + uuid.NewString() + "/options/" + optionID(t, poll, "A") + "/vote", http.StatusNotFound},
		{"unknown option", "/polls/" + poll.ID + "/options/" + uuid.NewString() + "/vote", http.StatusNotFound},
		{"option of another poll", "/polls/" + poll.ID + "/options/" + optionID(t, other, "X") + "/vote", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(t, "POST", tc.path, nil)
			testutil.AssertStatus(t, w, tc.status)
		})
	}
}

func TestDeletePollClosesSubscribers(t *testing.T) {
	app := newTestApp(t)
	poll := app.createPoll(t, "A", "B", "C")

	conn := app.subscribe(t, poll.ID)
	require.Eventually(t, func() bool { return app.registry.Len(poll.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	w := app.do(t, "DELETE", "/polls/"+poll.ID, nil)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.False(t, app.registry.Has(poll.ID))
}

func TestSubscribeInvalidPollID(t *testing.T) {
	app := newTestApp(t)

	conn := app.subscribe(t, "not-a-uuid")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()

	assert.True(t, websocket.IsCloseError(err, websocket.CloseProtocolError), "got %v", err)
	assert.Equal(t, 0, app.registry.Polls())
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/db"
	"github.com/danielhkuo/livepoll/models"
	"github.com/danielhkuo/livepoll/store"
)

// SetupTestDB creates a fresh SQLite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(context.Background(), cliparse.DatabaseSQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// SetupTestStore returns a store over a fresh test database
func SetupTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(SetupTestDB(t), cliparse.DatabaseSQLite)
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           8080,
		DatabaseURL:    "file::memory:",
		DatabaseType:   cliparse.DatabaseSQLite,
		Env:            "test",
		AllowedOrigins: []string{"*"},
		SendBuffer:     16,
		WriteTimeout:   2 * time.Second,
		BusWorkers:     4,
		BusQueue:       256,
	}
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at a fixed millisecond-aligned instant
func NewClock() *Clock {
	return &Clock{now: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// CreateTestPoll inserts a poll with the given bounds and option texts and
// returns it with its options. Random option texts are used when none are given.
func CreateTestPoll(t *testing.T, st *store.Store, start, end time.Time, texts ...string) models.Poll {
	t.Helper()

	if len(texts) == 0 {
		texts = []string{gofakeit.Word(), gofakeit.Word(), gofakeit.Word()}
	}

	poll := models.Poll{
		ID:        uuid.NewString(),
		Question:  gofakeit.Question(),
		StartsAt:  start.UTC().Truncate(time.Millisecond),
		EndsAt:    end.UTC().Truncate(time.Millisecond),
		CreatedAt: start.UTC().Truncate(time.Millisecond),
	}

	ctx := context.Background()
	if err := st.InsertPoll(ctx, poll); err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	for i, text := range texts {
		opt := models.Option{ID: uuid.NewString(), PollID: poll.ID, Text: text, Position: i}
		if err := st.InsertOption(ctx, opt); err != nil {
			t.Fatalf("Failed to create test option: %v", err)
		}
		poll.Options = append(poll.Options, opt)
	}

	return poll
}

// OptionByText finds an option of a poll by its text
func OptionByText(t *testing.T, poll models.Poll, text string) models.Option {
	t.Helper()
	for _, o := range poll.Options {
		if o.Text == text {
			return o
		}
	}
	t.Fatalf("option %q not found in poll %s", text, poll.ID)
	return models.Option{}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

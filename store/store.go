// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/models"
)

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("option not found")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes polls and options. A Store returned to an InTx
// callback is bound to that transaction.
type Store struct {
	db      *sql.DB
	q       querier
	dialect string
}

func New(db *sql.DB, dialect string) *Store {
	return &Store{db: db, q: db, dialect: dialect}
}

// InTx runs fn inside a transaction. The transaction commits only when fn
// returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	const op = "store.InTx"

	if s.db == nil {
		return fmt.Errorf("%s: nested transaction", op)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(&Store{q: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Store) InsertPoll(ctx context.Context, p models.Poll) error {
	const op = "store.InsertPoll"

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO polls (id, question, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Question, toMillis(p.StartsAt), toMillis(p.EndsAt), toMillis(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) GetPoll(ctx context.Context, id string) (models.Poll, error) {
	return s.getPoll(ctx, "store.GetPoll", id, "")
}

// GetPollForUpdate locks the poll row until the transaction ends.
// SQLite serializes writers already, so the lock clause is postgres only.
func (s *Store) GetPollForUpdate(ctx context.Context, id string) (models.Poll, error) {
	suffix := ""
	if s.dialect == cliparse.DatabasePostgres {
		suffix = " FOR UPDATE"
	}
	return s.getPoll(ctx, "store.GetPollForUpdate", id, suffix)
}

func (s *Store) getPoll(ctx context.Context, op, id, suffix string) (models.Poll, error) {
	var p models.Poll
	var starts, ends, created int64
	err := s.q.QueryRowContext(ctx, `
		SELECT id, question, starts_at, ends_at, created_at
		FROM polls
		WHERE id = $1`+suffix, id).Scan(&p.ID, &p.Question, &starts, &ends, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Poll{}, fmt.Errorf("%s: %w", op, ErrPollNotFound)
		}
		return models.Poll{}, fmt.Errorf("%s: %w", op, err)
	}
	p.StartsAt, p.EndsAt, p.CreatedAt = fromMillis(starts), fromMillis(ends), fromMillis(created)
	return p, nil
}

// ListPolls returns one page of polls, newest start first, and the total
// number of polls matching the filter.
func (s *Store) ListPolls(ctx context.Context, f models.PollFilter) ([]models.Poll, int64, error) {
	const op = "store.ListPolls"

	where, args := phaseClause(f)

	var total int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM polls`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	n := len(args)
	args = append(args, f.Size, f.Page*f.Size)
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, question, starts_at, ends_at, created_at
		FROM polls%s
		ORDER BY starts_at DESC, id
		LIMIT $%d OFFSET $%d`, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var polls []models.Poll
	for rows.Next() {
		var p models.Poll
		var starts, ends, created int64
		if err := rows.Scan(&p.ID, &p.Question, &starts, &ends, &created); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		p.StartsAt, p.EndsAt, p.CreatedAt = fromMillis(starts), fromMillis(ends), fromMillis(created)
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return polls, total, nil
}

func phaseClause(f models.PollFilter) (string, []any) {
	now := toMillis(f.Now)
	switch f.Phase {
	case models.PhaseNotStarted:
		return ` WHERE starts_at > $1`, []any{now}
	case models.PhaseInProgress:
		return ` WHERE starts_at <= $1 AND ends_at > $1`, []any{now}
	case models.PhaseFinished:
		return ` WHERE ends_at <= $1`, []any{now}
	}
	return "", nil
}

func (s *Store) UpdatePoll(ctx context.Context, p models.Poll) error {
	const op = "store.UpdatePoll"

	res, err := s.q.ExecContext(ctx, `
		UPDATE polls
		SET question = $1, starts_at = $2, ends_at = $3
		WHERE id = $4
	`, p.Question, toMillis(p.StartsAt), toMillis(p.EndsAt), p.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectRow(op, res, ErrPollNotFound)
}

// DeletePoll removes the poll and its options.
func (s *Store) DeletePoll(ctx context.Context, id string) error {
	const op = "store.DeletePoll"

	if _, err := s.q.ExecContext(ctx, `DELETE FROM options WHERE poll_id = $1`, id); err != nil {
		return fmt.Errorf("%s: options: %w", op, err)
	}

	res, err := s.q.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectRow(op, res, ErrPollNotFound)
}

func (s *Store) InsertOption(ctx context.Context, o models.Option) error {
	const op = "store.InsertOption"

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO options (id, poll_id, text, votes, position)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.PollID, o.Text, o.Votes, o.Position)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) GetOption(ctx context.Context, id string) (models.Option, error) {
	const op = "store.GetOption"

	var o models.Option
	err := s.q.QueryRowContext(ctx, `
		SELECT id, poll_id, text, votes, position
		FROM options
		WHERE id = $1
	`, id).Scan(&o.ID, &o.PollID, &o.Text, &o.Votes, &o.Position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Option{}, fmt.Errorf("%s: %w", op, ErrOptionNotFound)
		}
		return models.Option{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

func (s *Store) ListOptions(ctx context.Context, pollID string) ([]models.Option, error) {
	byPoll, err := s.ListOptionsByPolls(ctx, []string{pollID})
	if err != nil {
		return nil, err
	}
	return byPoll[pollID], nil
}

// ListOptionsByPolls loads the options of several polls in one query,
// grouped by poll id and ordered by position.
func (s *Store) ListOptionsByPolls(ctx context.Context, pollIDs []string) (map[string][]models.Option, error) {
	const op = "store.ListOptionsByPolls"

	out := make(map[string][]models.Option, len(pollIDs))
	if len(pollIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(pollIDs))
	args := make([]any, len(pollIDs))
	for i, id := range pollIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, poll_id, text, votes, position
		FROM options
		WHERE poll_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY poll_id, position, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.PollID, &o.Text, &o.Votes, &o.Position); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out[o.PollID] = append(out[o.PollID], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) CountOptions(ctx context.Context, pollID string) (int, error) {
	const op = "store.CountOptions"

	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM options WHERE poll_id = $1`, pollID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// NextPosition returns the position for an option appended to the poll.
func (s *Store) NextPosition(ctx context.Context, pollID string) (int, error) {
	const op = "store.NextPosition"

	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM options WHERE poll_id = $1
	`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *Store) DeleteOption(ctx context.Context, pollID, optionID string) error {
	const op = "store.DeleteOption"

	res, err := s.q.ExecContext(ctx, `DELETE FROM options WHERE id = $1 AND poll_id = $2`, optionID, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectRow(op, res, ErrOptionNotFound)
}

// IncrementVotes adds exactly one vote to the option. The increment is a
// single UPDATE so concurrent callers never lose updates.
func (s *Store) IncrementVotes(ctx context.Context, pollID, optionID string) error {
	const op = "store.IncrementVotes"

	res, err := s.q.ExecContext(ctx, `
		UPDATE options
		SET votes = votes + 1
		WHERE id = $1 AND poll_id = $2
	`, optionID, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectRow(op, res, ErrOptionNotFound)
}

func expectRow(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/guildpulse/internal/domain"
)

const uniqueViolation = "23505"

// PollRepo implements domain.PollLedger on PostgreSQL. The vote-versus-closure
// race is settled inside single statements: the vote insert is guarded by the
// closed flag and the deadline in the same statement, so a closure committing
// first always wins.
type PollRepo struct {
	pool *pgxpool.Pool
}

func NewPollRepo(pool *pgxpool.Pool) *PollRepo {
	return &PollRepo{pool: pool}
}

const pollColumns = `id, community_id, channel_id, created_by, question, options, ping_mode, role_ref, dm_enabled, created_at, ends_at, closed`

func scanPoll(row pgx.Row) (*domain.Poll, error) {
	var p domain.Poll
	var mode string
	err := row.Scan(
		&p.ID,
		&p.CommunityID,
		&p.ChannelID,
		&p.CreatedBy,
		&p.Question,
		&p.Options,
		&mode,
		&p.RoleRef,
		&p.DMEnabled,
		&p.CreatedAt,
		&p.EndsAt,
		&p.Closed,
	)
	if err != nil {
		return nil, err
	}
	p.PingMode = domain.PingMode(mode)
	return &p, nil
}

func (r *PollRepo) CreatePoll(ctx context.Context, poll *domain.Poll) error {
	query := `
		INSERT INTO polls (` + pollColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		poll.ID, poll.CommunityID, poll.ChannelID, poll.CreatedBy,
		poll.Question, poll.Options, string(poll.PingMode), poll.RoleRef,
		poll.DMEnabled, poll.CreatedAt, poll.EndsAt, poll.Closed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}
	return nil
}

func (r *PollRepo) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	poll, err := scanPoll(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return poll, nil
}

// InsertVote records a vote if and only if the poll is still open at commit
// time. The openness guard lives in the insert statement itself; a concurrent
// first vote surfaces as a primary key violation.
func (r *PollRepo) InsertVote(ctx context.Context, pollID uuid.UUID, voterID string, optionIndex int, votedAt time.Time) error {
	query := `
		INSERT INTO poll_votes (poll_id, voter_id, option_index, voted_at)
		SELECT id, $2, $3, $4
		FROM polls
		WHERE id = $1 AND NOT closed AND ends_at > $4`

	tag, err := r.pool.Exec(ctx, query, pollID, voterID, optionIndex, votedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateVote
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing inserted: the poll is missing, sealed, or past its deadline.
	if _, err := r.GetPoll(ctx, pollID); err != nil {
		return err
	}
	return domain.ErrPollClosed
}

func (r *PollRepo) ListDueOpen(ctx context.Context, now time.Time) ([]*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE NOT closed AND ends_at <= $1 ORDER BY ends_at`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due polls: %w", err)
	}
	defer rows.Close()

	var due []*domain.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		due = append(due, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due polls: %w", err)
	}
	return due, nil
}

// ClosePoll flips the closed flag, returning false if another sweep already
// sealed the poll.
func (r *PollRepo) ClosePoll(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE polls SET closed = TRUE WHERE id = $1 AND NOT closed`, id)
	if err != nil {
		return false, fmt.Errorf("failed to close poll: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	if _, err := r.GetPoll(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PollRepo) TallyVotes(ctx context.Context, id uuid.UUID) ([]int, error) {
	poll, err := r.GetPoll(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT option_index, COUNT(*) FROM poll_votes WHERE poll_id = $1 GROUP BY option_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	defer rows.Close()

	tally := make([]int, len(poll.Options))
	for rows.Next() {
		var index int
		var count int64
		if err := rows.Scan(&index, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		if index >= 0 && index < len(tally) {
			tally[index] = int(count)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tally: %w", err)
	}
	return tally, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/guildpulse/internal/domain"
)

// MemberRepo implements domain.MemberLedger on PostgreSQL.
type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

const memberColumns = `community_id, member_id, xp, last_active, rate_bucket, rate_earned, voice_minutes, created_at, updated_at`

func scanMember(row pgx.Row) (*domain.MemberRecord, error) {
	var rec domain.MemberRecord
	err := row.Scan(
		&rec.CommunityID,
		&rec.MemberID,
		&rec.XP,
		&rec.LastActive,
		&rec.RateBucket,
		&rec.RateEarned,
		&rec.VoiceMinutes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetOrCreate inserts a zero-XP row if absent and returns the current row.
// The no-op conflict update makes the insert race-free: two concurrent first
// lookups both get the same single row back.
func (r *MemberRepo) GetOrCreate(ctx context.Context, communityID, memberID string) (*domain.MemberRecord, error) {
	query := `
		INSERT INTO members (community_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (community_id, member_id)
		DO UPDATE SET community_id = EXCLUDED.community_id
		RETURNING ` + memberColumns

	rec, err := scanMember(r.pool.QueryRow(ctx, query, communityID, memberID))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create member: %w", err)
	}
	return rec, nil
}

func (r *MemberRepo) Save(ctx context.Context, rec *domain.MemberRecord) error {
	query := `
		UPDATE members
		SET xp = $3,
		    last_active = $4,
		    rate_bucket = $5,
		    rate_earned = $6,
		    voice_minutes = $7,
		    updated_at = now()
		WHERE community_id = $1 AND member_id = $2`

	_, err := r.pool.Exec(ctx, query,
		rec.CommunityID, rec.MemberID,
		rec.XP, rec.LastActive, rec.RateBucket, rec.RateEarned, rec.VoiceMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

func (r *MemberRepo) ListByCommunity(ctx context.Context, communityID string) ([]*domain.MemberRecord, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE community_id = $1 ORDER BY member_id`

	rows, err := r.pool.Query(ctx, query, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var records []*domain.MemberRecord
	for rows.Next() {
		rec, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read members: %w", err)
	}
	return records, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
)

// ErrDailyLimitExceeded is returned by Cast when the voter's accumulated
// UTC-day weight would pass the configured limit.
var ErrDailyLimitExceeded = errors.New("daily vote limit exceeded")

type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// CastParams carries everything the durable commit needs. The daily-limit
// check runs inside the same transaction as the insert so concurrent
// requests from one voter cannot slip past it.
type CastParams struct {
	VoteID       string
	ClipID       string
	VoterKey     string
	UserID       *string
	Weight       float64
	SlotPosition int
	Flagged      bool
	MultiVote    bool
	DailyLimit   float64
}

// CastResult reports the commit outcome.
type CastResult struct {
	IsNew      bool
	Weight     float64
	NewScore   float64
	VoteCount  int
	TotalToday float64
}

// RevokeResult reports the state removed by a revocation.
type RevokeResult struct {
	Weight     float64
	NewScore   float64
	VoteCount  int
	TotalToday float64
}

// dailyWeightSQL sums the voter's accepted weight over the current UTC day.
const dailyWeightSQL = `
	SELECT COALESCE(SUM(weight), 0) FROM votes
	WHERE voter_key = $1
	  AND created_at >= date_trunc('day', now() AT TIME ZONE 'utc') AT TIME ZONE 'utc'`

// Cast durably records a vote in one transaction: per-voter advisory lock,
// clip row lock, dedup lookup, UTC-day limit check, insert-or-accumulate,
// clip counter update. Lock order (voter advisory, then clip row) matches
// Revoke so the two can never deadlock each other.
func (r *VoteRepo) Cast(ctx context.Context, p CastParams) (*CastResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serialize all commits for this voter. hashtext collisions between
	// voters only cost extra serialization, never correctness.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.VoterKey); err != nil {
		return nil, err
	}

	var clipStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM clips WHERE id = $1 FOR UPDATE`, p.ClipID).Scan(&clipStatus)
	if err != nil {
		return nil, err // pgx.ErrNoRows when the clip vanished mid-request
	}

	var existingWeight float64
	err = tx.QueryRow(ctx, `SELECT weight FROM votes WHERE voter_key = $1 AND clip_id = $2`,
		p.VoterKey, p.ClipID).Scan(&existingWeight)
	isNew := errors.Is(err, pgx.ErrNoRows)
	if err != nil && !isNew {
		return nil, err
	}
	if !isNew && !p.MultiVote {
		return &CastResult{IsNew: false, Weight: existingWeight}, nil
	}

	var today float64
	if err := tx.QueryRow(ctx, dailyWeightSQL, p.VoterKey).Scan(&today); err != nil {
		return nil, err
	}
	if today+p.Weight > p.DailyLimit {
		return nil, ErrDailyLimitExceeded
	}

	// Multi-vote mode accumulates weight on the existing row instead of
	// inserting a duplicate.
	var finalWeight float64
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (id, clip_id, voter_key, user_id, weight, slot_position, flagged)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (voter_key, clip_id) DO UPDATE
		SET weight = votes.weight + EXCLUDED.weight, created_at = NOW()
		RETURNING weight`,
		p.VoteID, p.ClipID, p.VoterKey, p.UserID, p.Weight, p.SlotPosition, p.Flagged).Scan(&finalWeight)
	if err != nil {
		return nil, err
	}

	res := &CastResult{IsNew: isNew, Weight: finalWeight, TotalToday: today + p.Weight}
	err = tx.QueryRow(ctx, `
		UPDATE clips
		SET vote_count = vote_count + CASE WHEN $2 THEN 1 ELSE 0 END,
		    weighted_score = weighted_score + $3
		WHERE id = $1
		RETURNING vote_count, weighted_score`,
		p.ClipID, isNew, p.Weight).Scan(&res.VoteCount, &res.NewScore)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// Revoke removes a voter's vote on a clip and decrements the clip counters
// atomically. Returns pgx.ErrNoRows when no matching vote exists, with no
// state touched.
func (r *VoteRepo) Revoke(ctx context.Context, voterKey, clipID string) (*RevokeResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, voterKey); err != nil {
		return nil, err
	}

	var voteID string
	var weight float64
	err = tx.QueryRow(ctx, `
		SELECT id, weight FROM votes
		WHERE voter_key = $1 AND clip_id = $2
		FOR UPDATE`, voterKey, clipID).Scan(&voteID, &weight)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM votes WHERE id = $1`, voteID); err != nil {
		return nil, err
	}

	res := &RevokeResult{Weight: weight}
	err = tx.QueryRow(ctx, `
		UPDATE clips
		SET vote_count = GREATEST(vote_count - 1, 0),
		    weighted_score = GREATEST(weighted_score - $2, 0)
		WHERE id = $1
		RETURNING vote_count, weighted_score`,
		clipID, weight).Scan(&res.VoteCount, &res.NewScore)
	if err != nil {
		return nil, err
	}

	if err := tx.QueryRow(ctx, dailyWeightSQL, voterKey).Scan(&res.TotalToday); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyQueued persists one fast-path queue event. Idempotent: the event id
// is the vote id, so redelivery hits ON CONFLICT DO NOTHING and the clip
// counters are only touched when the row actually landed.
func (r *VoteRepo) ApplyQueued(ctx context.Context, ev model.VoteEvent) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO votes (id, clip_id, voter_key, user_id, weight, slot_position, flagged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`,
		ev.ID, ev.ClipID, ev.VoterKey, ev.UserID, ev.Weight, ev.SlotPosition, ev.Flagged, ev.Timestamp)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE clips
		SET vote_count = vote_count + 1, weighted_score = weighted_score + $2
		WHERE id = $1`, ev.ClipID, ev.Weight)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DailyWeight returns the voter's accumulated weight for the current UTC
// day, straight from the ledger.
func (r *VoteRepo) DailyWeight(ctx context.Context, voterKey string) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, dailyWeightSQL, voterKey).Scan(&total)
	return total, err
}

// VotedClipIDs returns the clips this voter has voted on in the given slot.
func (r *VoteRepo) VotedClipIDs(ctx context.Context, voterKey, seasonID string, slotPosition int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT v.clip_id FROM votes v
		JOIN clips c ON c.id = v.clip_id
		WHERE v.voter_key = $1 AND c.season_id = $2 AND v.slot_position = $3`,
		voterKey, seasonID, slotPosition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveVoters returns voters with ledger activity in the current UTC day,
// with their accumulated weight. Used by the reseed pass to rebuild the
// fast-path daily counters from the source of truth.
func (r *VoteRepo) ActiveVoters(ctx context.Context) (map[string]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT voter_key, COALESCE(SUM(weight), 0) FROM votes
		WHERE created_at >= date_trunc('day', now() AT TIME ZONE 'utc') AT TIME ZONE 'utc'
		GROUP BY voter_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	voters := make(map[string]float64)
	for rows.Next() {
		var key string
		var total float64
		if err := rows.Scan(&key, &total); err != nil {
			return nil, err
		}
		voters[key] = total
	}
	return voters, rows.Err()
}

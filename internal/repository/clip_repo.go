package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
)

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// Bulk moderation actions.
const (
	BulkApprove = "approve"
	BulkReject  = "reject"
	BulkDelete  = "delete"
	BulkReset   = "reset"
)

// ErrUnknownAction is returned for a bulk action outside the fixed set.
var ErrUnknownAction = errors.New("unknown bulk action")

type ClipRepo struct {
	pool *pgxpool.Pool
}

func NewClipRepo(pool *pgxpool.Pool) *ClipRepo {
	return &ClipRepo{pool: pool}
}

const clipColumns = `id, season_id, slot_position, status, title, video_url, vote_count, weighted_score, created_at`

func scanClip(row interface{ Scan(...any) error }) (*model.Clip, error) {
	var c model.Clip
	err := row.Scan(&c.ID, &c.SeasonID, &c.SlotPosition, &c.Status, &c.Title,
		&c.VideoURL, &c.VoteCount, &c.WeightedScore, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Find returns a clip by id, or pgx.ErrNoRows.
func (r *ClipRepo) Find(ctx context.Context, clipID string) (*model.Clip, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = $1`, clipID)
	return scanClip(row)
}

// ListEligible returns up to limit active clips in the given slot that the
// voter has not voted on, excluding client-supplied forward-dedup ids.
// includeVoted relaxes the voted filter (forceNew feeds).
func (r *ClipRepo) ListEligible(ctx context.Context, seasonID string, slotPosition int,
	voterKey string, excludeIDs []string, includeVoted bool, limit int) ([]model.Clip, error) {

	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+clipColumns+` FROM clips c
		WHERE c.season_id = $1 AND c.slot_position = $2 AND c.status = 'active'
		  AND NOT (c.id = ANY($3))
		  AND ($6 OR NOT EXISTS (
			SELECT 1 FROM votes v WHERE v.clip_id = c.id AND v.voter_key = $4))
		ORDER BY c.created_at
		LIMIT $5`,
		seasonID, slotPosition, excludeIDs, voterKey, limit, includeVoted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []model.Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, *c)
	}
	return clips, rows.Err()
}

// ActiveClipIDs returns the ids of all active clips in a slot. Feeds the
// fast-path slot-membership set.
func (r *ClipRepo) ActiveClipIDs(ctx context.Context, seasonID string, slotPosition int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM clips
		WHERE season_id = $1 AND slot_position = $2 AND status = 'active'`,
		seasonID, slotPosition)
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

// CounterSnapshots returns ledger-backed tallies for every clip in a slot,
// for reseeding the fast-path counters.
func (r *ClipRepo) CounterSnapshots(ctx context.Context, seasonID string, slotPosition int) ([]model.CounterSnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, vote_count, weighted_score FROM clips
		WHERE season_id = $1 AND slot_position = $2`,
		seasonID, slotPosition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.CounterSnapshot
	for rows.Next() {
		var s model.CounterSnapshot
		if err := rows.Scan(&s.ClipID, &s.VoteCount, &s.WeightedScore); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// BulkOutcome is the raw result of one batch transition.
type BulkOutcome struct {
	Processed []string
	Blocked   []string
	Demoted   []int // slot positions demoted voting -> waiting_for_clips
}

// BulkTransition applies one moderation action to a bounded id set in a
// single transaction. Deleting a clip that is some slot's recorded winner
// is blocked per id, not per batch. Any voting slot left without active
// clips is demoted to waiting_for_clips before commit, never left voting
// and empty.
func (r *ClipRepo) BulkTransition(ctx context.Context, action string, clipIDs []string) (*BulkOutcome, error) {
	var newStatus string
	switch action {
	case BulkApprove:
		newStatus = model.ClipActive
	case BulkReject:
		newStatus = model.ClipRejected
	case BulkReset:
		newStatus = model.ClipPending
	case BulkDelete:
		// handled below
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := &BulkOutcome{}

	// Winner protection applies to destructive removal only.
	blocked := make(map[string]bool)
	if action == BulkDelete {
		rows, err := tx.Query(ctx, `
			SELECT winner_clip_id FROM slots
			WHERE winner_clip_id = ANY($1)
			FOR UPDATE`, clipIDs)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			blocked[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	var eligible []string
	for _, id := range clipIDs {
		if blocked[id] {
			out.Blocked = append(out.Blocked, id)
		} else {
			eligible = append(eligible, id)
		}
	}

	// Remember which slots the batch touches before mutating.
	type slotRef struct {
		seasonID string
		position int
	}
	touched := make(map[slotRef]bool)
	rows, err := tx.Query(ctx, `
		SELECT id, season_id, slot_position FROM clips
		WHERE id = ANY($1)
		FOR UPDATE`, eligible)
	if err != nil {
		return nil, err
	}
	var present []string
	for rows.Next() {
		var id, seasonID string
		var pos int
		if err := rows.Scan(&id, &seasonID, &pos); err != nil {
			rows.Close()
			return nil, err
		}
		present = append(present, id)
		touched[slotRef{seasonID, pos}] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if action == BulkDelete {
		if _, err := tx.Exec(ctx, `DELETE FROM votes WHERE clip_id = ANY($1)`, present); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM clips WHERE id = ANY($1)`, present); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.Exec(ctx, `UPDATE clips SET status = $2 WHERE id = ANY($1)`, present, newStatus); err != nil {
			return nil, err
		}
	}
	out.Processed = present

	// Invariant: a voting slot must never be left with zero active clips.
	for ref := range touched {
		var pos int
		err := tx.QueryRow(ctx, `
			UPDATE slots
			SET status = 'waiting_for_clips', voting_started_at = NULL, voting_ends_at = NULL
			WHERE season_id = $1 AND position = $2 AND status = 'voting'
			  AND NOT EXISTS (
				SELECT 1 FROM clips
				WHERE season_id = $1 AND slot_position = $2 AND status = 'active')
			RETURNING position`, ref.seasonID, ref.position).Scan(&pos)
		if isNoRows(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Demoted = append(out.Demoted, pos)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

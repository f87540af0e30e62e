package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
)

// Winner-assignment loser policies.
const (
	PolicyEliminate    = "eliminate"
	PolicyCarryForward = "carry_forward"
)

var (
	// ErrSlotNotVoting is returned when a winner is assigned to a slot
	// that is not open for voting.
	ErrSlotNotVoting = errors.New("slot is not in voting state")
	// ErrInvalidWinner is returned when the candidate clip is not an
	// active clip of the target slot.
	ErrInvalidWinner = errors.New("clip is not an active candidate of this slot")
	// ErrSlotNotLocked is returned when reopening a slot that is not
	// locked.
	ErrSlotNotLocked = errors.New("slot is not locked")
)

type SlotRepo struct {
	pool *pgxpool.Pool
}

func NewSlotRepo(pool *pgxpool.Pool) *SlotRepo {
	return &SlotRepo{pool: pool}
}

const slotColumns = `id, season_id, position, status, winner_clip_id, voting_started_at, voting_ends_at, voting_duration`

func scanSlot(row interface{ Scan(...any) error }) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.ID, &s.SeasonID, &s.Position, &s.Status, &s.WinnerClipID,
		&s.VotingStartedAt, &s.VotingEndsAt, &s.VotingDuration)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ActiveSeason returns the active season for a genre track, or the most
// recent active season when no genre is given. pgx.ErrNoRows when none.
func (r *SlotRepo) ActiveSeason(ctx context.Context, genre string) (*model.Season, error) {
	var row interface{ Scan(...any) error }
	const cols = `id, status, total_slots, genre, created_at`
	if genre == "" {
		row = r.pool.QueryRow(ctx, `
			SELECT `+cols+` FROM seasons WHERE status = 'active'
			ORDER BY created_at DESC LIMIT 1`)
	} else {
		row = r.pool.QueryRow(ctx, `
			SELECT `+cols+` FROM seasons WHERE status = 'active' AND genre = $1
			ORDER BY created_at DESC LIMIT 1`, genre)
	}

	var s model.Season
	if err := row.Scan(&s.ID, &s.Status, &s.TotalSlots, &s.Genre, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// EligibleSlot returns the season's current vote-eligible slot (voting or
// waiting_for_clips), lowest position first. pgx.ErrNoRows when none.
func (r *SlotRepo) EligibleSlot(ctx context.Context, seasonID string) (*model.Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE season_id = $1 AND status IN ('voting', 'waiting_for_clips')
		ORDER BY position LIMIT 1`, seasonID)
	return scanSlot(row)
}

// VotingSlotCount counts the season's slots currently in voting state.
// More than one violates the soft single-voting-slot invariant; callers
// log a warning rather than fail.
func (r *SlotRepo) VotingSlotCount(ctx context.Context, seasonID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM slots WHERE season_id = $1 AND status = 'voting'`, seasonID).Scan(&n)
	return n, err
}

// FindSlot returns a slot by id.
func (r *SlotRepo) FindSlot(ctx context.Context, slotID string) (*model.Slot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, slotID)
	return scanSlot(row)
}

// WinnerOutcome reports what the winner-assignment transaction did.
type WinnerOutcome struct {
	SeasonID       string
	SlotPosition   int
	LoserIDs       []string
	NextPosition   int
	NextStatus     string // voting, waiting_for_clips, or "" when not advanced
	SeasonFinished bool
}

// AssignWinner runs the whole slot-lock-and-advance sequence in one
// transaction: lock the slot with its winner, apply the loser policy,
// then either activate the next slot, park it waiting for clips, or
// finish the season when the final slot locked. Either every step lands
// or none does.
func (r *SlotRepo) AssignWinner(ctx context.Context, slotID, clipID, policy string,
	advance bool, votingDuration time.Duration) (*WinnerOutcome, error) {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var seasonID, slotStatus string
	var position int
	err = tx.QueryRow(ctx, `
		SELECT season_id, position, status FROM slots WHERE id = $1 FOR UPDATE`,
		slotID).Scan(&seasonID, &position, &slotStatus)
	if err != nil {
		return nil, err
	}
	if slotStatus != model.SlotVoting {
		return nil, ErrSlotNotVoting
	}

	var clipStatus, clipSeason string
	var clipPosition int
	err = tx.QueryRow(ctx, `
		SELECT status, season_id, slot_position FROM clips WHERE id = $1 FOR UPDATE`,
		clipID).Scan(&clipStatus, &clipSeason, &clipPosition)
	if err != nil {
		return nil, err
	}
	if clipStatus != model.ClipActive || clipSeason != seasonID || clipPosition != position {
		return nil, ErrInvalidWinner
	}

	var totalSlots int
	err = tx.QueryRow(ctx, `
		SELECT total_slots FROM seasons WHERE id = $1 FOR UPDATE`, seasonID).Scan(&totalSlots)
	if err != nil {
		return nil, err
	}

	// Lock the slot: winner recorded, timers cleared.
	_, err = tx.Exec(ctx, `
		UPDATE slots
		SET status = 'locked', winner_clip_id = $2,
		    voting_started_at = NULL, voting_ends_at = NULL
		WHERE id = $1`, slotID, clipID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE clips SET status = 'locked' WHERE id = $1`, clipID); err != nil {
		return nil, err
	}

	out := &WinnerOutcome{SeasonID: seasonID, SlotPosition: position}
	next := position + 1
	seasonDone := next > totalSlots

	// Loser policy. Carry-forward only makes sense when there is a next
	// slot to carry into.
	var loserSQL string
	var loserArgs []any
	if policy == PolicyCarryForward && !seasonDone {
		loserSQL = `
			UPDATE clips
			SET slot_position = $3, vote_count = 0, weighted_score = 0
			WHERE season_id = $1 AND slot_position = $2 AND status = 'active'
			RETURNING id`
		loserArgs = []any{seasonID, position, next}
	} else {
		loserSQL = `
			UPDATE clips
			SET status = 'eliminated'
			WHERE season_id = $1 AND slot_position = $2 AND status = 'active'
			RETURNING id`
		loserArgs = []any{seasonID, position}
	}
	rows, err := tx.Query(ctx, loserSQL, loserArgs...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		out.LoserIDs = append(out.LoserIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if advance {
		if seasonDone {
			if err := r.finishSeason(ctx, tx, seasonID); err != nil {
				return nil, err
			}
			out.SeasonFinished = true
		} else {
			status, err := r.activateSlot(ctx, tx, seasonID, next, votingDuration)
			if errors.Is(err, errSlotMissing) {
				// Slot rows exhausted early: treat as season end.
				if err := r.finishSeason(ctx, tx, seasonID); err != nil {
					return nil, err
				}
				out.SeasonFinished = true
			} else if err != nil {
				return nil, err
			} else {
				out.NextPosition = next
				out.NextStatus = status
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

var errSlotMissing = errors.New("slot row missing")

// activateSlot transitions the slot at the given position to voting (fresh
// timer) when it has active clips, else to waiting_for_clips.
func (r *SlotRepo) activateSlot(ctx context.Context, tx pgx.Tx, seasonID string, position int,
	votingDuration time.Duration) (string, error) {

	var activeClips int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM clips
		WHERE season_id = $1 AND slot_position = $2 AND status = 'active'`,
		seasonID, position).Scan(&activeClips)
	if err != nil {
		return "", err
	}

	if activeClips > 0 {
		tag, err := tx.Exec(ctx, `
			UPDATE slots
			SET status = 'voting',
			    voting_started_at = NOW(),
			    voting_ends_at = NOW() + make_interval(secs => $3)
			WHERE season_id = $1 AND position = $2`,
			seasonID, position, votingDuration.Seconds())
		if err != nil {
			return "", err
		}
		if tag.RowsAffected() == 0 {
			return "", errSlotMissing
		}
		return model.SlotVoting, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE slots
		SET status = 'waiting_for_clips', voting_started_at = NULL, voting_ends_at = NULL
		WHERE season_id = $1 AND position = $2`,
		seasonID, position)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", errSlotMissing
	}
	return model.SlotWaitingForClips, nil
}

// finishSeason marks the season finished and eliminates any straggler
// active clips season-wide (safety net).
func (r *SlotRepo) finishSeason(ctx context.Context, tx pgx.Tx, seasonID string) error {
	if _, err := tx.Exec(ctx, `UPDATE seasons SET status = 'finished' WHERE id = $1`, seasonID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE clips SET status = 'eliminated'
		WHERE season_id = $1 AND status = 'active'`, seasonID)
	return err
}

// ReopenSlot is the god-mode override: a locked slot returns to voting (if
// it still has active clips) or waiting_for_clips, and the recorded winner
// reverts to active. Returns the slot's new status.
func (r *SlotRepo) ReopenSlot(ctx context.Context, slotID string, votingDuration time.Duration) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var seasonID, status string
	var position int
	var winnerID *string
	err = tx.QueryRow(ctx, `
		SELECT season_id, position, status, winner_clip_id FROM slots
		WHERE id = $1 FOR UPDATE`, slotID).Scan(&seasonID, &position, &status, &winnerID)
	if err != nil {
		return "", err
	}
	if status != model.SlotLocked {
		return "", ErrSlotNotLocked
	}

	if winnerID != nil {
		if _, err := tx.Exec(ctx, `UPDATE clips SET status = 'active' WHERE id = $1`, *winnerID); err != nil {
			return "", err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE slots SET winner_clip_id = NULL WHERE id = $1`, slotID); err != nil {
		return "", err
	}

	newStatus, err := r.activateSlot(ctx, tx, seasonID, position, votingDuration)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return newStatus, nil
}

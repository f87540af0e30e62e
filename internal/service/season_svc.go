package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
)

// SeasonService drives the slot/season state machine: winner assignment,
// slot advancement, and the god-mode reopen override. The transactional
// work lives in the repository; this layer resolves the advance policy,
// validates intent, and propagates the outcome.
type SeasonService struct {
	slots   *repository.SlotRepo
	clips   *repository.ClipRepo
	fast    *FastPath
	counter *CounterService
	fanout  *FanoutService
	flags   *FlagService
	log     zerolog.Logger

	votingDuration time.Duration
}

func NewSeasonService(slots *repository.SlotRepo, clips *repository.ClipRepo, fast *FastPath,
	counter *CounterService, fanout *FanoutService, flags *FlagService,
	votingDuration time.Duration, log zerolog.Logger) *SeasonService {

	if votingDuration <= 0 {
		votingDuration = 24 * time.Hour
	}
	return &SeasonService{
		slots: slots, clips: clips, fast: fast, counter: counter,
		fanout: fanout, flags: flags, votingDuration: votingDuration, log: log,
	}
}

// AssignWinner locks the slot around the winning clip and, when advance is
// set, moves the season to its next slot (or finishes it). The repository
// transaction makes the whole sequence atomic; propagation afterwards is
// best effort.
func (s *SeasonService) AssignWinner(ctx context.Context, slotID, clipID string, advance bool) (*repository.WinnerOutcome, error) {
	policy := s.flags.AdvancePolicy(ctx)

	out, err := s.slots.AssignWinner(ctx, slotID, clipID, policy, advance, s.votingDuration)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("slot_id", slotID).
		Str("winner_clip_id", clipID).
		Str("policy", policy).
		Int("losers", len(out.LoserIDs)).
		Bool("season_finished", out.SeasonFinished).
		Str("next_status", out.NextStatus).
		Msg("season: winner assigned")

	s.syncSlotState(ctx, out.SeasonID, out.SlotPosition)
	s.fanout.PublishSlotChange(out.SeasonID, out.SlotPosition, model.SlotLocked)
	if out.NextStatus != "" {
		s.syncSlotState(ctx, out.SeasonID, out.NextPosition)
		s.fanout.PublishSlotChange(out.SeasonID, out.NextPosition, out.NextStatus)
	}
	if out.SeasonFinished {
		s.fanout.PublishSlotChange(out.SeasonID, out.SlotPosition, model.SeasonFinished)
	}
	return out, nil
}

// ReopenSlot is the explicit admin override for a locked slot. The
// previous winner reverts to active and the slot recomputes whether it
// needs clips.
func (s *SeasonService) ReopenSlot(ctx context.Context, slotID string) (string, error) {
	status, err := s.slots.ReopenSlot(ctx, slotID, s.votingDuration)
	if err != nil {
		return "", err
	}

	slot, ferr := s.slots.FindSlot(ctx, slotID)
	if ferr == nil {
		s.log.Info().Str("slot_id", slotID).Str("status", status).Msg("season: slot reopened (god mode)")
		s.syncSlotState(ctx, slot.SeasonID, slot.Position)
		s.fanout.PublishSlotChange(slot.SeasonID, slot.Position, status)
	}
	return status, nil
}

// IsNotFound reports whether the error means the slot or clip is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// syncSlotState rebuilds the fast-path slot-membership set and reseeds the
// slot's clip counters from the ledger. Best effort: failures leave the
// validation store structurally incomplete, which the breaker converts
// into durable-path traffic until the reseed pass recovers.
func (s *SeasonService) syncSlotState(ctx context.Context, seasonID string, position int) {
	ids, err := s.clips.ActiveClipIDs(ctx, seasonID, position)
	if err != nil {
		s.log.Warn().Err(err).Int("position", position).Msg("season: active clip lookup failed")
		return
	}
	if err := s.fast.RebuildSlotSet(ctx, seasonID, position, ids); err != nil &&
		!errors.Is(err, ErrFastPathUnavailable) {
		s.log.Warn().Err(err).Int("position", position).Msg("season: slot set rebuild failed")
	}

	snaps, err := s.clips.CounterSnapshots(ctx, seasonID, position)
	if err != nil {
		s.log.Warn().Err(err).Int("position", position).Msg("season: counter snapshot load failed")
		return
	}
	for _, snap := range snaps {
		if err := s.counter.Seed(ctx, snap); err != nil && !errors.Is(err, ErrFastPathUnavailable) {
			s.log.Warn().Err(err).Str("clip_id", snap.ClipID).Msg("season: counter seed failed")
		}
	}
}

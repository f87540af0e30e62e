package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
)

// MaxBulkSize bounds one batch moderation call.
const MaxBulkSize = 100

var (
	// ErrBatchTooLarge rejects oversized batches before any work.
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d clip ids", MaxBulkSize)
	// ErrEmptyBatch rejects batches with no ids.
	ErrEmptyBatch = errors.New("batch contains no clip ids")
)

// BulkService applies admin batch transitions while preserving the same
// invariants as the single-vote and slot-advance paths: a voting slot is
// never left without active clips, and a slot's recorded winner cannot be
// deleted out from under it.
type BulkService struct {
	clips  *repository.ClipRepo
	fast   *FastPath
	fanout *FanoutService
	log    zerolog.Logger
}

func NewBulkService(clips *repository.ClipRepo, fast *FastPath, fanout *FanoutService, log zerolog.Logger) *BulkService {
	return &BulkService{clips: clips, fast: fast, fanout: fanout, log: log}
}

// normalizeBatch validates and dedupes the id set. Pure.
func normalizeBatch(clipIDs []string) ([]string, error) {
	seen := make(map[string]bool, len(clipIDs))
	var ids []string
	for _, id := range clipIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(ids) > MaxBulkSize {
		return nil, ErrBatchTooLarge
	}
	return ids, nil
}

// Apply runs one batch action. Partial success is reported, not silently
// dropped: blocked ids come back alongside the processed ones.
func (s *BulkService) Apply(ctx context.Context, action string, clipIDs []string) (*model.BulkResult, error) {
	ids, err := normalizeBatch(clipIDs)
	if err != nil {
		return nil, err
	}

	out, err := s.clips.BulkTransition(ctx, action, ids)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("action", action).
		Int("processed", len(out.Processed)).
		Int("blocked", len(out.Blocked)).
		Ints("demoted_slots", out.Demoted).
		Msg("bulk: batch applied")

	// Slot membership changed for every processed clip's slot; rebuild the
	// live sets so the fast path stops accepting votes for removed clips.
	s.rebuildTouched(ctx, out.Processed)

	res := &model.BulkResult{
		Processed: out.Processed,
		Blocked:   out.Blocked,
		Demoted:   out.Demoted,
	}
	if res.Processed == nil {
		res.Processed = []string{}
	}
	if res.Blocked == nil {
		res.Blocked = []string{}
	}
	return res, nil
}

// rebuildTouched refreshes the fast-path slot sets for the slots the batch
// touched. Deleted clips no longer resolve, so the slots are found through
// the demotion bookkeeping or a full lookup per remaining clip; failures
// are logged only.
func (s *BulkService) rebuildTouched(ctx context.Context, processed []string) {
	type ref struct {
		seasonID string
		position int
	}
	touched := make(map[ref]bool)
	for _, id := range processed {
		clip, err := s.clips.Find(ctx, id)
		if err != nil {
			continue // deleted; its slot is covered by a surviving sibling or reseed
		}
		touched[ref{clip.SeasonID, clip.SlotPosition}] = true
	}
	for r := range touched {
		ids, err := s.clips.ActiveClipIDs(ctx, r.seasonID, r.position)
		if err != nil {
			s.log.Warn().Err(err).Int("position", r.position).Msg("bulk: active clip lookup failed")
			continue
		}
		if err := s.fast.RebuildSlotSet(ctx, r.seasonID, r.position, ids); err != nil &&
			!errors.Is(err, ErrFastPathUnavailable) {
			s.log.Warn().Err(err).Int("position", r.position).Msg("bulk: slot set rebuild failed")
		}
		s.fanout.PublishSlotChange(r.seasonID, r.position, "clips_changed")
	}
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
)

// LedgerWorker drains the fast-path persist queue into Postgres and
// periodically reseeds the fast-path state from the ledger. Consumption is
// at-least-once with an idempotent apply: redelivered events hit the vote
// id conflict and are dropped.
type LedgerWorker struct {
	votes *repository.VoteRepo
	slots *repository.SlotRepo
	clips *repository.ClipRepo
	fast  *FastPath
	log   zerolog.Logger

	popTimeout     time.Duration
	reseedInterval time.Duration

	// Optional observers, set before Start.
	OnApplied    func()
	OnDeadLetter func()
}

func NewLedgerWorker(votes *repository.VoteRepo, slots *repository.SlotRepo, clips *repository.ClipRepo,
	fast *FastPath, log zerolog.Logger) *LedgerWorker {

	return &LedgerWorker{
		votes: votes, slots: slots, clips: clips, fast: fast, log: log,
		popTimeout:     5 * time.Second,
		reseedInterval: 10 * time.Minute,
	}
}

// Start runs the drain loop and the reseed ticker until the context is
// cancelled.
func (w *LedgerWorker) Start(ctx context.Context) {
	w.log.Info().Dur("reseed_interval", w.reseedInterval).Msg("ledger-worker: starting")

	go w.reseedLoop(ctx)

	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("ledger-worker: stopping")
			return
		}
		if err := w.drainOne(ctx); err != nil {
			if ctx.Err() != nil {
				w.log.Info().Msg("ledger-worker: stopping")
				return
			}
			w.log.Warn().Err(err).Msg("ledger-worker: drain error, retrying in 5s")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// drainOne pops and applies at most one queued event.
func (w *LedgerWorker) drainOne(ctx context.Context) error {
	ev, raw, err := w.fast.Dequeue(ctx, w.popTimeout)
	if errors.Is(err, ErrFastPathUnavailable) {
		// Nothing to drain without Redis; poll slowly in case it returns.
		select {
		case <-time.After(30 * time.Second):
		case <-ctx.Done():
		}
		return nil
	}
	if err != nil {
		if raw != nil {
			// Undecodable payload: park it instead of looping on it.
			w.log.Error().Err(err).Msg("ledger-worker: undecodable event, dead-lettering")
			w.fast.DeadLetter(ctx, raw)
			w.deadLettered()
			return nil
		}
		return err
	}
	if ev == nil {
		return nil // timeout, loop again
	}

	applied, err := w.votes.ApplyQueued(ctx, *ev)
	if err != nil {
		// Requeue via dead letter rather than dropping a durable write.
		w.log.Error().Err(err).Str("vote_id", ev.ID).Msg("ledger-worker: apply failed, dead-lettering")
		w.fast.DeadLetter(ctx, raw)
		w.deadLettered()
		return nil
	}
	if !applied {
		w.log.Debug().Str("vote_id", ev.ID).Msg("ledger-worker: duplicate event skipped")
		return nil
	}
	if w.OnApplied != nil {
		w.OnApplied()
	}
	return nil
}

func (w *LedgerWorker) deadLettered() {
	if w.OnDeadLetter != nil {
		w.OnDeadLetter()
	}
}

func (w *LedgerWorker) reseedLoop(ctx context.Context) {
	ticker := time.NewTicker(w.reseedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.reseed(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// reseed rebuilds the fast-path daily counters and the live slot state
// from the ledger, the source of truth. Corrects drift from missed
// cleanups and counter skew from duplicate fast-path increments.
func (w *LedgerWorker) reseed(ctx context.Context) {
	start := time.Now()

	voters, err := w.votes.ActiveVoters(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("ledger-worker: reseed voter scan failed")
		return
	}
	var season *model.Season
	var slot *model.Slot
	if s, err := w.slots.ActiveSeason(ctx, ""); err == nil {
		season = s
		if sl, err := w.slots.EligibleSlot(ctx, s.ID); err == nil {
			slot = sl
		}
	}

	seeded := 0
	for key, total := range voters {
		if err := w.fast.SeedDaily(ctx, key, total); err != nil {
			if errors.Is(err, ErrFastPathUnavailable) {
				return
			}
			w.log.Warn().Err(err).Msg("ledger-worker: daily seed failed")
			continue
		}
		if season != nil && slot != nil {
			ids, err := w.votes.VotedClipIDs(ctx, key, season.ID, slot.Position)
			if err == nil {
				if err := w.fast.SeedVoted(ctx, key, season.ID, slot.Position, ids); err != nil &&
					!errors.Is(err, ErrFastPathUnavailable) {
					w.log.Warn().Err(err).Msg("ledger-worker: voted seed failed")
				}
			}
		}
		seeded++
	}

	if season != nil && slot != nil {
		w.reseedSlot(ctx, season.ID, slot.Position)
	}

	w.log.Info().
		Int("voters", seeded).
		Dur("took", time.Since(start)).
		Msg("ledger-worker: reseed complete")
}

func (w *LedgerWorker) reseedSlot(ctx context.Context, seasonID string, position int) {
	ids, err := w.clips.ActiveClipIDs(ctx, seasonID, position)
	if err == nil {
		if err := w.fast.RebuildSlotSet(ctx, seasonID, position, ids); err != nil &&
			!errors.Is(err, ErrFastPathUnavailable) {
			w.log.Warn().Err(err).Msg("ledger-worker: slot set reseed failed")
		}
	}
	snaps, err := w.clips.CounterSnapshots(ctx, seasonID, position)
	if err != nil {
		return
	}
	counter := NewCounterService(w.fast.Client())
	for _, snap := range snaps {
		if err := counter.Seed(ctx, snap); err != nil {
			return
		}
	}
}

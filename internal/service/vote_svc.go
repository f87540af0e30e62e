package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/chiefnavajo/aimoviez-sub005/internal/identity"
	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
)

// CaptchaVerifier is the CAPTCHA collaborator: token in, pass or fail.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

// AcceptAllCaptcha is the default verifier for deployments without a
// CAPTCHA provider.
type AcceptAllCaptcha struct{}

func (AcceptAllCaptcha) Verify(context.Context, string) error { return nil }

// VoteConfig carries the voting rules the executor enforces.
type VoteConfig struct {
	DailyLimit   float64
	FreezeWindow time.Duration
	MultiVote    bool // default; the multi_vote_mode flag overrides
}

// VoteService is the vote executor: validation stage, breaker-guarded
// fast/durable path selection, commit, and fire-and-forget propagation.
type VoteService struct {
	votes   *repository.VoteRepo
	clips   *repository.ClipRepo
	slots   *repository.SlotRepo
	fast    *FastPath
	counter *CounterService
	breaker *Breaker
	fanout  *FanoutService
	flags   *FlagService
	captcha CaptchaVerifier
	cfg     VoteConfig
	log     zerolog.Logger

	now func() time.Time
}

func NewVoteService(votes *repository.VoteRepo, clips *repository.ClipRepo, slots *repository.SlotRepo,
	fast *FastPath, counter *CounterService, breaker *Breaker, fanout *FanoutService,
	flags *FlagService, captcha CaptchaVerifier, cfg VoteConfig, log zerolog.Logger) *VoteService {

	if captcha == nil {
		captcha = AcceptAllCaptcha{}
	}
	return &VoteService{
		votes: votes, clips: clips, slots: slots,
		fast: fast, counter: counter, breaker: breaker, fanout: fanout,
		flags: flags, captcha: captcha, cfg: cfg, log: log,
		now: time.Now,
	}
}

// checkTiming enforces the voting deadline and the pre-tally freeze
// window. A slot without timing state fails open: freeze and expiry are
// skipped rather than blocking voting.
func checkTiming(slot *model.Slot, now time.Time, freeze time.Duration) *VoteError {
	if slot.Status != model.SlotVoting {
		return nil
	}
	if slot.VotingEndsAt == nil {
		return nil
	}
	ends := *slot.VotingEndsAt
	if now.After(ends) {
		return ErrVotingExpired
	}
	if freeze > 0 && now.After(ends.Add(-freeze)) {
		return ErrVotingFrozen
	}
	return nil
}

// validateTarget runs the slot-side validation stage over already loaded
// state. Pure so the stage is testable without stores. Error precedence:
// clip status, waiting, expiry, wrong slot, then the freeze window.
func validateTarget(clip *model.Clip, slot *model.Slot, now time.Time, freeze time.Duration) *VoteError {
	if clip.Status != model.ClipActive {
		return ErrClipNotActive
	}
	if !slot.Eligible() {
		return ErrNoActiveSlot
	}
	if slot.Status == model.SlotWaitingForClips {
		return ErrWaitingClips
	}
	verr := checkTiming(slot, now, freeze)
	if verr == ErrVotingExpired {
		return verr
	}
	if clip.SlotPosition != slot.Position {
		return ErrWrongSlot
	}
	return verr
}

// Cast accepts one vote: validate, select a path, commit exactly once,
// propagate. Fast-path infrastructure failure is converted by the breaker
// into a transparent durable-path fallback, never a caller-visible error.
func (s *VoteService) Cast(ctx context.Context, id identity.Identity, req model.VoteRequest) (*model.VoteResponse, error) {
	clip, err := s.clips.Find(ctx, req.ClipID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, s.storage("load clip", err)
	}

	slot, err := s.slots.EligibleSlot(ctx, clip.SeasonID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveSlot
	}
	if err != nil {
		return nil, s.storage("load slot", err)
	}
	s.warnOnSplitVoting(ctx, clip.SeasonID)

	if slot.Status == model.SlotVoting && slot.VotingEndsAt == nil {
		s.log.Warn().Str("slot_id", slot.ID).Msg("vote: slot has no deadline, freeze check failing open")
	}
	if verr := validateTarget(clip, slot, s.now(), s.cfg.FreezeWindow); verr != nil {
		return nil, verr
	}

	// Risk gates run after target validation so a bad clip id reports its
	// own error even for risky callers.
	if id.Blocked() {
		return nil, ErrRiskBlocked
	}
	if id.Risk >= identity.RiskFlag && s.flags.Bool(ctx, FlagCaptchaOnHighRisk, false) {
		if req.CaptchaToken == "" {
			return nil, ErrCaptchaRequired
		}
		if err := s.captcha.Verify(ctx, req.CaptchaToken); err != nil {
			return nil, ErrCaptchaFailed
		}
	}

	multiVote := s.flags.Bool(ctx, FlagMultiVote, s.cfg.MultiVote)
	weight := model.StandardVoteWeight
	ev := model.VoteEvent{
		ID:           uuid.NewString(),
		ClipID:       clip.ID,
		VoterKey:     id.VoterKey,
		UserID:       id.UserID,
		Weight:       weight,
		SeasonID:     clip.SeasonID,
		SlotPosition: slot.Position,
		Timestamp:    s.now().UTC(),
		Risk:         id.Risk,
		Flagged:      id.Flagged(),
	}

	// Multi-vote accumulation rewrites the existing ledger row, which the
	// queued fast-path apply cannot do idempotently. Those casts go durable.
	if !multiVote && s.breaker.Allow() {
		resp, verr, fastErr := s.castFast(ctx, ev, multiVote)
		if fastErr == nil {
			s.breaker.RecordSuccess()
			if verr != nil {
				return nil, verr
			}
			return resp, nil
		}
		s.breaker.RecordFailure()
		s.log.Warn().Err(fastErr).Str("clip_id", clip.ID).Msg("vote: fast path failed, falling back to durable path")
	}

	return s.castDurable(ctx, ev, multiVote)
}

// castFast runs the fast path: one atomic reservation round trip, a
// commutative counter increment, and a queued durable write. Returns a
// fast-path error only for infrastructure failure; rejections come back
// as vote errors.
func (s *VoteService) castFast(ctx context.Context, ev model.VoteEvent, multiVote bool) (*model.VoteResponse, *VoteError, error) {
	outcome, err := s.fast.Reserve(ctx, ev.VoterKey, ev.SeasonID, ev.SlotPosition,
		ev.ClipID, ev.Weight, s.cfg.DailyLimit, multiVote)
	if err != nil {
		return nil, nil, err
	}

	switch outcome.Status {
	case ReserveAlreadyVoted:
		return nil, ErrAlreadyVoted, nil
	case ReserveDailyLimit:
		return nil, ErrDailyLimit, nil
	}

	if err := s.counter.Incr(ctx, ev.ClipID, 1, ev.Weight); err != nil {
		s.log.Warn().Err(err).Str("clip_id", ev.ClipID).Msg("vote: counter increment failed, reseed will correct")
	}

	if err := s.fast.Enqueue(ctx, ev); err != nil {
		// The reservation stands but the durable write would be lost.
		// Persist synchronously instead of dropping the vote.
		s.log.Error().Err(err).Str("vote_id", ev.ID).Msg("vote: enqueue failed, writing ledger synchronously")
		if _, err := s.votes.ApplyQueued(ctx, ev); err != nil {
			releaseErr := s.fast.Release(ctx, ev.VoterKey, ev.SeasonID, ev.SlotPosition, ev.ClipID, ev.Weight)
			if releaseErr != nil {
				s.log.Error().Err(releaseErr).Str("vote_id", ev.ID).Msg("vote: reservation rollback failed")
			}
			return nil, s.storage("persist vote", err), nil
		}
	}

	snap, err := s.counter.Read(ctx, ev.ClipID)
	if err != nil {
		snap = &model.CounterSnapshot{ClipID: ev.ClipID}
	}
	s.propagate(ev, snap.VoteCount, snap.WeightedScore)

	return &model.VoteResponse{
		Success:         true,
		ClipID:          ev.ClipID,
		NewScore:        snap.WeightedScore,
		TotalVotesToday: outcome.TotalToday,
		RemainingVotes:  s.remaining(outcome.TotalToday),
	}, nil, nil
}

// castDurable runs the transactional path: one unit locks, dedup-checks,
// applies the daily limit, inserts and updates counters.
func (s *VoteService) castDurable(ctx context.Context, ev model.VoteEvent, multiVote bool) (*model.VoteResponse, error) {
	res, err := s.votes.Cast(ctx, repository.CastParams{
		VoteID:       ev.ID,
		ClipID:       ev.ClipID,
		VoterKey:     ev.VoterKey,
		UserID:       ev.UserID,
		Weight:       ev.Weight,
		SlotPosition: ev.SlotPosition,
		Flagged:      ev.Flagged,
		MultiVote:    multiVote,
		DailyLimit:   s.cfg.DailyLimit,
	})
	if errors.Is(err, repository.ErrDailyLimitExceeded) {
		return nil, ErrDailyLimit
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, s.storage("durable cast", err)
	}
	if !res.IsNew && !multiVote {
		return nil, ErrAlreadyVoted
	}

	// Keep the fast-path view consistent so a later fast-path request
	// cannot double-accept. Best effort; the reseed pass self-corrects.
	if _, err := s.fast.Reserve(ctx, ev.VoterKey, ev.SeasonID, ev.SlotPosition,
		ev.ClipID, ev.Weight, s.cfg.DailyLimit, multiVote); err != nil &&
		!errors.Is(err, ErrFastPathUnavailable) {
		s.log.Debug().Err(err).Msg("vote: fast-path marker sync failed")
	}
	if err := s.counter.Seed(ctx, model.CounterSnapshot{
		ClipID:        ev.ClipID,
		VoteCount:     int64(res.VoteCount),
		WeightedScore: res.NewScore,
	}); err != nil && !errors.Is(err, ErrFastPathUnavailable) {
		s.log.Debug().Err(err).Msg("vote: counter seed failed")
	}

	s.propagate(ev, int64(res.VoteCount), res.NewScore)

	return &model.VoteResponse{
		Success:         true,
		ClipID:          ev.ClipID,
		NewScore:        res.NewScore,
		TotalVotesToday: res.TotalToday,
		RemainingVotes:  s.remaining(res.TotalToday),
	}, nil
}

// Revoke is the exact inverse of casting: atomically locate-and-remove the
// vote, decrement counters, clean up the fast-path markers so the voter
// can immediately re-vote.
func (s *VoteService) Revoke(ctx context.Context, id identity.Identity, clipID string) (*model.VoteResponse, error) {
	clip, err := s.clips.Find(ctx, clipID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, s.storage("load clip", err)
	}

	res, err := s.votes.Revoke(ctx, id.VoterKey, clipID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotVoted
	}
	if err != nil {
		return nil, s.storage("revoke vote", err)
	}

	// Fast-path cleanup failures are non-fatal: logged, then corrected by
	// the periodic reseed.
	if err := s.fast.Release(ctx, id.VoterKey, clip.SeasonID, clip.SlotPosition, clipID, res.Weight); err != nil &&
		!errors.Is(err, ErrFastPathUnavailable) {
		s.log.Warn().Err(err).Str("clip_id", clipID).Msg("revoke: fast-path cleanup failed")
	}
	if err := s.counter.Seed(ctx, model.CounterSnapshot{
		ClipID:        clipID,
		VoteCount:     int64(res.VoteCount),
		WeightedScore: res.NewScore,
	}); err != nil && !errors.Is(err, ErrFastPathUnavailable) {
		s.log.Debug().Err(err).Msg("revoke: counter seed failed")
	}

	s.fanout.PublishScore(clipID, int64(res.VoteCount), res.NewScore)

	return &model.VoteResponse{
		Success:         true,
		ClipID:          clipID,
		NewScore:        res.NewScore,
		TotalVotesToday: res.TotalToday,
		RemainingVotes:  s.remaining(res.TotalToday),
	}, nil
}

// FeedQuery are the GET /vote parameters.
type FeedQuery struct {
	Limit      int
	Genre      string
	ExcludeIDs []string
	ForceNew   bool
}

// Feed returns a batch of eligible clips for the voter's current slot plus
// per-voter progress state.
func (s *VoteService) Feed(ctx context.Context, id identity.Identity, q FeedQuery) (*model.FeedResponse, error) {
	season, err := s.slots.ActiveSeason(ctx, q.Genre)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveSlot
	}
	if err != nil {
		return nil, s.storage("load season", err)
	}

	slot, err := s.slots.EligibleSlot(ctx, season.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveSlot
	}
	if err != nil {
		return nil, s.storage("load slot", err)
	}

	// Fetch one past the limit to learn whether more clips remain.
	clips, err := s.clips.ListEligible(ctx, season.ID, slot.Position,
		id.VoterKey, q.ExcludeIDs, q.ForceNew, q.Limit+1)
	if err != nil {
		return nil, s.storage("list clips", err)
	}
	hasMore := len(clips) > q.Limit
	if hasMore {
		clips = clips[:q.Limit]
	}

	// Overlay the live counters where available; the stored columns lag
	// under the fast path.
	for i := range clips {
		snap, err := s.counter.Read(ctx, clips[i].ID)
		if err != nil || snap.VoteCount == 0 {
			continue
		}
		clips[i].VoteCount = int(snap.VoteCount)
		clips[i].WeightedScore = snap.WeightedScore
	}

	voted, err := s.votes.VotedClipIDs(ctx, id.VoterKey, season.ID, slot.Position)
	if err != nil {
		s.log.Warn().Err(err).Msg("feed: voted lookup failed")
		voted = nil
	}
	today, err := s.votes.DailyWeight(ctx, id.VoterKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("feed: daily weight lookup failed")
		today = 0
	}

	var remainSecs int64
	if slot.VotingEndsAt != nil {
		if d := slot.VotingEndsAt.Sub(s.now()); d > 0 {
			remainSecs = int64(d.Seconds())
		}
	}
	if voted == nil {
		voted = []string{}
	}
	if clips == nil {
		clips = []model.Clip{}
	}

	return &model.FeedResponse{
		Clips:                clips,
		VotedClipIDs:         voted,
		CurrentSlot:          slot.Position,
		TotalSlots:           season.TotalSlots,
		VotingEndsAt:         slot.VotingEndsAt,
		TimeRemainingSeconds: remainSecs,
		HasMoreClips:         hasMore,
		RemainingVotes:       s.remaining(today),
	}, nil
}

func (s *VoteService) remaining(totalToday float64) model.RemainingVotes {
	left := int(s.cfg.DailyLimit - totalToday)
	if left < 0 {
		left = 0
	}
	return model.RemainingVotes{Standard: left}
}

func (s *VoteService) propagate(ev model.VoteEvent, votes int64, score float64) {
	s.fanout.PublishScore(ev.ClipID, votes, score)
	s.fanout.NotifyVote(ev.ClipID, ev.VoterKey)
}

// warnOnSplitVoting logs the soft single-voting-slot invariant violation.
func (s *VoteService) warnOnSplitVoting(ctx context.Context, seasonID string) {
	n, err := s.slots.VotingSlotCount(ctx, seasonID)
	if err == nil && n > 1 {
		s.log.Warn().Str("season_id", seasonID).Int("voting_slots", n).
			Msg("vote: season has multiple slots in voting state")
	}
}

// storage logs the full infrastructure failure server-side and returns the
// generic storage rejection so internals never leak to callers.
func (s *VoteService) storage(op string, err error) *VoteError {
	s.log.Error().Err(err).Str("op", op).Msg("vote: storage failure")
	return ErrStorage
}

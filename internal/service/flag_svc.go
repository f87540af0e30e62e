package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
)

// Feature flag keys.
const (
	FlagMultiVote         = "multi_vote_mode"
	FlagCarryForward      = "carry_forward_losers"
	FlagCaptchaOnHighRisk = "captcha_on_high_risk"
)

// FlagService reads feature flags through a TTL cache. It is an injected
// service object, not package state, so tests control it and concurrent
// requests share one coherent view. Invalidate drops the cache after admin
// writes.
type FlagService struct {
	repo *repository.FlagRepo
	ttl  time.Duration
	log  zerolog.Logger

	mu     sync.RWMutex
	cache  map[string]bool
	loaded time.Time
}

func NewFlagService(repo *repository.FlagRepo, ttl time.Duration, log zerolog.Logger) *FlagService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FlagService{repo: repo, ttl: ttl, log: log, cache: make(map[string]bool)}
}

// Bool returns the flag value, or def when the flag is unset or the store
// is unreachable. Lookup failures are logged and degrade to the default;
// flags never fail a request.
func (s *FlagService) Bool(ctx context.Context, key string, def bool) bool {
	s.mu.RLock()
	fresh := time.Since(s.loaded) < s.ttl
	val, ok := s.cache[key]
	s.mu.RUnlock()
	if fresh && ok {
		return val
	}

	enabled, exists, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("flag", key).Msg("flags: lookup failed, using default")
		return def
	}
	if !exists {
		enabled = def
	}

	s.mu.Lock()
	if time.Since(s.loaded) >= s.ttl {
		// Whole-cache expiry: start a fresh window.
		s.cache = make(map[string]bool)
		s.loaded = time.Now()
	}
	s.cache[key] = enabled
	s.mu.Unlock()
	return enabled
}

// Invalidate drops the cached values. Admin flag writes and tests call
// this for deterministic reads.
func (s *FlagService) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]bool)
	s.loaded = time.Time{}
	s.mu.Unlock()
}

// AdvancePolicy is the winner-advancement strategy, resolved once per
// admin call rather than branched inline. The legacy carry-forward
// behavior stays reachable behind its flag.
func (s *FlagService) AdvancePolicy(ctx context.Context) string {
	if s.Bool(ctx, FlagCarryForward, false) {
		return repository.PolicyCarryForward
	}
	return repository.PolicyEliminate
}

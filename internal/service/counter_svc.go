package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
)

// CounterService keeps the eventually consistent per-clip tallies. Writes
// are commutative increments (HINCRBY / HINCRBYFLOAT), so concurrent
// updates from any number of processes merge without coordination; the
// ledger stays the source of truth and Seed reconciles drift.
type CounterService struct {
	rdb *redis.Client
}

func NewCounterService(rdb *redis.Client) *CounterService {
	return &CounterService{rdb: rdb}
}

// Incr applies a commutative increment to a clip's counter. Negative
// deltas decrement (revocation).
func (c *CounterService) Incr(ctx context.Context, clipID string, deltaVotes int64, deltaWeight float64) error {
	if c.rdb == nil {
		return ErrFastPathUnavailable
	}
	key := counterKey(clipID)
	pipe := c.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, "votes", deltaVotes)
	pipe.HIncrByFloat(ctx, key, "weight", deltaWeight)
	_, err := pipe.Exec(ctx)
	return err
}

// Read returns the current counter snapshot. May lag the ledger slightly
// under the fast path; missing keys read as zero.
func (c *CounterService) Read(ctx context.Context, clipID string) (*model.CounterSnapshot, error) {
	snap := &model.CounterSnapshot{ClipID: clipID}
	if c.rdb == nil {
		return snap, nil
	}
	vals, err := c.rdb.HMGet(ctx, counterKey(clipID), "votes", "weight").Result()
	if err != nil {
		return nil, err
	}
	if s, ok := vals[0].(string); ok {
		snap.VoteCount, _ = strconv.ParseInt(s, 10, 64)
	}
	if s, ok := vals[1].(string); ok {
		snap.WeightedScore, _ = strconv.ParseFloat(s, 64)
	}
	return snap, nil
}

// Seed overwrites a clip's counter from a ledger-backed snapshot.
func (c *CounterService) Seed(ctx context.Context, snap model.CounterSnapshot) error {
	if c.rdb == nil {
		return ErrFastPathUnavailable
	}
	return c.rdb.HSet(ctx, counterKey(snap.ClipID),
		"votes", snap.VoteCount,
		"weight", strconv.FormatFloat(snap.WeightedScore, 'f', -1, 64)).Err()
}

func counterKey(clipID string) string {
	return fmt.Sprintf("counter:%s", clipID)
}

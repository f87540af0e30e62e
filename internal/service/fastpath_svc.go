package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
)

// Fast-path key TTLs. Dedup and daily keys survive the UTC day they refer
// to with slack; the reseed pass corrects any drift before expiry.
const (
	votedSetTTL  = 48 * time.Hour
	dailyKeyTTL  = 48 * time.Hour
	slotSetTTL   = 72 * time.Hour
	persistQueue = "vote:persist"
	deadLetter   = "vote:persist:dead"
)

// Reservation outcomes from the atomic check.
const (
	ReserveOK           = "ok"
	ReserveAlreadyVoted = "already_voted"
	ReserveDailyLimit   = "daily_limit"
)

var (
	// ErrFastPathUnavailable means the validation store has no client.
	ErrFastPathUnavailable = errors.New("fast path unavailable")
	// ErrLiveStateMissing means the slot-membership set was absent:
	// structural failure, the request must fall back to the durable path.
	ErrLiveStateMissing = errors.New("live slot state missing from validation store")
	// ErrLiveStateStale means the store's slot membership disagrees with
	// the ledger view used during validation.
	ErrLiveStateStale = errors.New("live slot state stale")
)

// reserveScript performs dedup-check, daily-limit-check and
// slot-membership-check in one atomic round trip.
//
// KEYS: 1=slot membership set, 2=voter dedup set, 3=voter daily counter
// ARGV: 1=clipID, 2=weight, 3=daily limit, 4=dedup TTL s, 5=daily TTL s,
//
//	6=multi-vote ("1"/"0")
var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {'missing_state', '0'}
end
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
  return {'stale_state', '0'}
end
if ARGV[6] == '0' and redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
  return {'already_voted', '0'}
end
local total = tonumber(redis.call('INCRBYFLOAT', KEYS[3], ARGV[2]))
if total > tonumber(ARGV[3]) then
  redis.call('INCRBYFLOAT', KEYS[3], '-' .. ARGV[2])
  return {'daily_limit', tostring(total - tonumber(ARGV[2]))}
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('EXPIRE', KEYS[2], tonumber(ARGV[4]))
redis.call('EXPIRE', KEYS[3], tonumber(ARGV[5]))
return {'ok', tostring(total)}
`)

// FastPath is the Redis-backed validation store: the low-latency answer to
// "has this voter already voted / is the voter under the daily limit / is
// this clip in the live slot", plus the persist queue feeding the ledger
// worker.
type FastPath struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewFastPath connects to Redis. An empty URL or failed connection yields
// a degraded instance whose operations return ErrFastPathUnavailable; the
// circuit breaker then keeps traffic on the durable path.
func NewFastPath(redisURL string, log zerolog.Logger) *FastPath {
	if redisURL == "" {
		log.Warn().Msg("fastpath: no redis URL, fast path disabled")
		return &FastPath{log: log}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("fastpath: invalid redis URL, fast path disabled")
		return &FastPath{log: log}
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("fastpath: redis unreachable, fast path disabled")
		return &FastPath{log: log}
	}

	log.Info().Msg("fastpath: redis connected")
	return &FastPath{rdb: rdb, log: log}
}

// Client exposes the underlying client for health checks. May be nil.
func (f *FastPath) Client() *redis.Client { return f.rdb }

// ReserveOutcome is the result of one atomic reservation.
type ReserveOutcome struct {
	Status     string
	TotalToday float64
}

// Reserve atomically checks dedup, daily limit and slot membership, and on
// success marks the dedup set and charges the daily counter. Errors are
// fast-path failures (breaker fodder); rejections come back as outcomes.
func (f *FastPath) Reserve(ctx context.Context, voterKey, seasonID string, slotPosition int,
	clipID string, weight, dailyLimit float64, multiVote bool) (*ReserveOutcome, error) {

	if f.rdb == nil {
		return nil, ErrFastPathUnavailable
	}

	multi := "0"
	if multiVote {
		multi = "1"
	}
	keys := []string{
		slotSetKey(seasonID, slotPosition),
		votedSetKey(voterKey, seasonID, slotPosition),
		dailyKey(voterKey, time.Now().UTC()),
	}
	argv := []any{
		clipID,
		strconv.FormatFloat(weight, 'f', -1, 64),
		strconv.FormatFloat(dailyLimit, 'f', -1, 64),
		int(votedSetTTL.Seconds()),
		int(dailyKeyTTL.Seconds()),
		multi,
	}

	raw, err := reserveScript.Run(ctx, f.rdb, keys, argv...).Slice()
	if err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("fastpath: unexpected script reply of length %d", len(raw))
	}
	status, _ := raw[0].(string)
	totalStr, _ := raw[1].(string)
	total, _ := strconv.ParseFloat(totalStr, 64)

	switch status {
	case "missing_state":
		return nil, ErrLiveStateMissing
	case "stale_state":
		return nil, ErrLiveStateStale
	case ReserveOK, ReserveAlreadyVoted, ReserveDailyLimit:
		return &ReserveOutcome{Status: status, TotalToday: total}, nil
	default:
		return nil, fmt.Errorf("fastpath: unexpected script status %q", status)
	}
}

// Release undoes a voter's reservation after a durable revocation so the
// voter can immediately re-vote. Best effort: the caller logs failures and
// the periodic reseed self-corrects.
func (f *FastPath) Release(ctx context.Context, voterKey, seasonID string, slotPosition int,
	clipID string, weight float64) error {

	if f.rdb == nil {
		return ErrFastPathUnavailable
	}
	pipe := f.rdb.Pipeline()
	pipe.SRem(ctx, votedSetKey(voterKey, seasonID, slotPosition), clipID)
	pipe.IncrByFloat(ctx, dailyKey(voterKey, time.Now().UTC()), -weight)
	_, err := pipe.Exec(ctx)
	return err
}

// Enqueue pushes a vote event onto the persist queue for the ledger
// worker. Events are idempotently consumable: the uuid id dedupes on
// insert.
func (f *FastPath) Enqueue(ctx context.Context, ev model.VoteEvent) error {
	if f.rdb == nil {
		return ErrFastPathUnavailable
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.LPush(ctx, persistQueue, payload).Err()
}

// Dequeue blocks up to timeout for the next queued vote event. Returns
// (nil, nil) on timeout.
func (f *FastPath) Dequeue(ctx context.Context, timeout time.Duration) (*model.VoteEvent, []byte, error) {
	if f.rdb == nil {
		return nil, nil, ErrFastPathUnavailable
	}
	res, err := f.rdb.BRPop(ctx, timeout, persistQueue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	raw := []byte(res[1])
	var ev model.VoteEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, raw, err
	}
	return &ev, raw, nil
}

// DeadLetter parks an undecodable or unappliable event for manual review.
func (f *FastPath) DeadLetter(ctx context.Context, raw []byte) {
	if f.rdb == nil || raw == nil {
		return
	}
	if err := f.rdb.LPush(ctx, deadLetter, raw).Err(); err != nil {
		f.log.Error().Err(err).Msg("fastpath: dead-letter push failed")
	}
}

// QueueDepth reports the persist queue length for metrics and health checks.
func (f *FastPath) QueueDepth(ctx context.Context) (int64, error) {
	if f.rdb == nil {
		return 0, nil
	}
	return f.rdb.LLen(ctx, persistQueue).Result()
}

// RebuildSlotSet replaces the live slot-membership set. Called whenever a
// slot's active clip population changes (winner assignment, bulk
// moderation, reseed).
func (f *FastPath) RebuildSlotSet(ctx context.Context, seasonID string, slotPosition int, clipIDs []string) error {
	if f.rdb == nil {
		return ErrFastPathUnavailable
	}
	key := slotSetKey(seasonID, slotPosition)
	pipe := f.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(clipIDs) > 0 {
		members := make([]any, len(clipIDs))
		for i, id := range clipIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, slotSetTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SeedDaily overwrites a voter's daily counter from the ledger value.
func (f *FastPath) SeedDaily(ctx context.Context, voterKey string, total float64) error {
	if f.rdb == nil {
		return ErrFastPathUnavailable
	}
	return f.rdb.Set(ctx, dailyKey(voterKey, time.Now().UTC()),
		strconv.FormatFloat(total, 'f', -1, 64), dailyKeyTTL).Err()
}

// SeedVoted overwrites a voter's dedup set from ledger rows.
func (f *FastPath) SeedVoted(ctx context.Context, voterKey, seasonID string, slotPosition int, clipIDs []string) error {
	if f.rdb == nil {
		return ErrFastPathUnavailable
	}
	key := votedSetKey(voterKey, seasonID, slotPosition)
	pipe := f.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(clipIDs) > 0 {
		members := make([]any, len(clipIDs))
		for i, id := range clipIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, votedSetTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Close shuts down the Redis connection.
func (f *FastPath) Close() error {
	if f.rdb == nil {
		return nil
	}
	return f.rdb.Close()
}

func slotSetKey(seasonID string, position int) string {
	return fmt.Sprintf("slotclips:%s:%d", seasonID, position)
}

func votedSetKey(voterKey, seasonID string, position int) string {
	return fmt.Sprintf("voted:%s:%s:%d", voterKey, seasonID, position)
}

func dailyKey(voterKey string, day time.Time) string {
	return fmt.Sprintf("daily:%s:%s", voterKey, day.Format("20060102"))
}

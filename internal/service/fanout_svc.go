package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Pub/sub channels for live subscribers.
const (
	scoreChannel = "live:clip_scores"
	slotChannel  = "live:slot_changes"
)

// Notifier is the fire-and-forget notification collaborator. Failures are
// the implementation's problem; the vote pipeline never sees them.
type Notifier interface {
	VoteAccepted(clipID, voterKey string)
}

// LogNotifier is the default Notifier: it only logs. Deployments wire a
// real sender here.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) VoteAccepted(clipID, voterKey string) {
	n.Log.Debug().Str("clip_id", clipID).Msg("notify: vote accepted")
}

// FanoutService propagates counter and slot changes to live subscribers
// and secondary caches. Every publish is best-effort and non-blocking:
// errors are swallowed and logged, never returned to the vote path.
type FanoutService struct {
	rdb      *redis.Client
	notifier Notifier
	log      zerolog.Logger
}

func NewFanoutService(rdb *redis.Client, notifier Notifier, log zerolog.Logger) *FanoutService {
	return &FanoutService{rdb: rdb, notifier: notifier, log: log}
}

type scoreUpdate struct {
	ClipID        string  `json:"clipId"`
	VoteCount     int64   `json:"voteCount"`
	WeightedScore float64 `json:"weightedScore"`
	At            int64   `json:"at"`
}

type slotUpdate struct {
	SeasonID string `json:"seasonId"`
	Position int    `json:"position"`
	Status   string `json:"status"`
	At       int64  `json:"at"`
}

// PublishScore broadcasts a clip's new tally and warms the snapshot key.
func (f *FanoutService) PublishScore(clipID string, votes int64, weight float64) {
	go f.publish(scoreChannel, scoreUpdate{
		ClipID:        clipID,
		VoteCount:     votes,
		WeightedScore: weight,
		At:            time.Now().Unix(),
	})
}

// PublishSlotChange broadcasts a slot lifecycle transition.
func (f *FanoutService) PublishSlotChange(seasonID string, position int, status string) {
	go f.publish(slotChannel, slotUpdate{
		SeasonID: seasonID,
		Position: position,
		Status:   status,
		At:       time.Now().Unix(),
	})
}

// NotifyVote fires the notification collaborator without blocking.
func (f *FanoutService) NotifyVote(clipID, voterKey string) {
	if f.notifier == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error().Any("panic", r).Msg("fanout: notifier panicked")
			}
		}()
		f.notifier.VoteAccepted(clipID, voterKey)
	}()
}

func (f *FanoutService) publish(channel string, payload any) {
	if f.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		f.log.Error().Err(err).Str("channel", channel).Msg("fanout: marshal failed")
		return
	}
	if err := f.rdb.Publish(ctx, channel, data).Err(); err != nil {
		f.log.Warn().Err(err).Str("channel", channel).Msg("fanout: publish failed")
	}
}

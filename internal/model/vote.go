package model

import "time"

// StandardVoteWeight is the weight of a single unflagged vote.
const StandardVoteWeight = 1.0

// Vote is one ledger row: the durable record of one voter's vote on one
// clip. At most one row exists per (voter_key, clip_id) unless multi-vote
// mode is enabled, in which case weight accumulates in place.
type Vote struct {
	ID           string    `json:"id"`
	ClipID       string    `json:"clipId"`
	VoterKey     string    `json:"voterKey"`
	UserID       *string   `json:"userId,omitempty"`
	Weight       float64   `json:"weight"`
	SlotPosition int       `json:"slotPosition"`
	Flagged      bool      `json:"flagged"`
	CreatedAt    time.Time `json:"createdAt"`
}

// VoteEvent is one entry in the fast-path persist queue. The ID doubles as
// the idempotency key: the ledger worker inserts with ON CONFLICT DO
// NOTHING, so duplicate delivery never double-applies.
type VoteEvent struct {
	ID           string    `json:"voteId"`
	ClipID       string    `json:"clipId"`
	VoterKey     string    `json:"voterKey"`
	UserID       *string   `json:"userId,omitempty"`
	Weight       float64   `json:"weight"`
	SeasonID     string    `json:"seasonId"`
	SlotPosition int       `json:"slotPosition"`
	Timestamp    time.Time `json:"timestamp"`
	Risk         int       `json:"risk"`
	Flagged      bool      `json:"flagged"`
}

// VoteRequest is the API request body for POST /api/vote.
type VoteRequest struct {
	ClipID       string `json:"clipId"`
	CaptchaToken string `json:"captchaToken,omitempty"`
}

// VoteDeleteRequest is the API request body for DELETE /api/vote.
type VoteDeleteRequest struct {
	ClipID string `json:"clipId"`
}

// RemainingVotes reports the voter's remaining daily quota.
type RemainingVotes struct {
	Standard int `json:"standard"`
}

// VoteResponse is the API response after casting or revoking a vote.
type VoteResponse struct {
	Success         bool           `json:"success"`
	ClipID          string         `json:"clipId"`
	NewScore        float64        `json:"newScore"`
	TotalVotesToday float64        `json:"totalVotesToday"`
	RemainingVotes  RemainingVotes `json:"remainingVotes"`
}

// FeedResponse is the API response for GET /api/vote: a batch of eligible
// clips for the current slot plus the voter's progress state.
type FeedResponse struct {
	Clips                []Clip         `json:"clips"`
	VotedClipIDs         []string       `json:"votedClipIds"`
	CurrentSlot          int            `json:"currentSlot"`
	TotalSlots           int            `json:"totalSlots"`
	VotingEndsAt         *time.Time     `json:"votingEndsAt,omitempty"`
	TimeRemainingSeconds int64          `json:"timeRemainingSeconds"`
	HasMoreClips         bool           `json:"hasMoreClips"`
	RemainingVotes       RemainingVotes `json:"remainingVotes"`
}

// WinnerRequest is the admin request body for assigning a slot winner.
type WinnerRequest struct {
	ClipID      string `json:"clipId"`
	AdvanceSlot bool   `json:"advanceSlot"`
}

// BulkRequest is the admin request body for batch clip moderation.
type BulkRequest struct {
	Action  string   `json:"action"`
	ClipIDs []string `json:"clipIds"`
}

// BulkResult reports the outcome of a batch moderation call. Blocked ids
// (e.g. deleting a slot's recorded winner) are reported, not silently
// dropped.
type BulkResult struct {
	Processed []string `json:"processed"`
	Blocked   []string `json:"blocked"`
	Demoted   []int    `json:"demotedSlots,omitempty"`
}

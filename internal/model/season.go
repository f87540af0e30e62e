package model

import "time"

// Season status values.
const (
	SeasonDraft    = "draft"
	SeasonActive   = "active"
	SeasonFinished = "finished"
)

// Slot status values.
const (
	SlotUpcoming        = "upcoming"
	SlotWaitingForClips = "waiting_for_clips"
	SlotVoting          = "voting"
	SlotLocked          = "locked"
)

// Season is a tournament run: an ordered sequence of slots that advances
// toward a winner. At most one season is active per genre track.
type Season struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	TotalSlots int       `json:"totalSlots"`
	Genre      *string   `json:"genre,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Slot is one elimination round within a season. At most one slot per
// season should be in the voting state at a time; a violation is logged
// as a warning, not treated as fatal.
type Slot struct {
	ID              string     `json:"id"`
	SeasonID        string     `json:"seasonId"`
	Position        int        `json:"position"`
	Status          string     `json:"status"`
	WinnerClipID    *string    `json:"winnerClipId,omitempty"`
	VotingStartedAt *time.Time `json:"votingStartedAt,omitempty"`
	VotingEndsAt    *time.Time `json:"votingEndsAt,omitempty"`
	VotingDuration  int        `json:"votingDurationHours"`
}

// Eligible reports whether the slot can be the vote target of its season:
// either open for voting or waiting for clips to arrive.
func (s *Slot) Eligible() bool {
	return s.Status == SlotVoting || s.Status == SlotWaitingForClips
}

package model

import "time"

// Clip status values.
const (
	ClipPending    = "pending"
	ClipActive     = "active"
	ClipLocked     = "locked"
	ClipRejected   = "rejected"
	ClipEliminated = "eliminated"
)

// Clip is a short video competing in one slot of a season. Only active
// clips are vote targets; the slot winner becomes locked and the losers
// are eliminated (or carried forward with reset scores in legacy mode).
type Clip struct {
	ID            string    `json:"id"`
	SeasonID      string    `json:"seasonId"`
	SlotPosition  int       `json:"slotPosition"`
	Status        string    `json:"status"`
	Title         *string   `json:"title,omitempty"`
	VideoURL      *string   `json:"videoUrl,omitempty"`
	VoteCount     int       `json:"voteCount"`
	WeightedScore float64   `json:"weightedScore"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CounterSnapshot is the eventually consistent per-clip tally kept in the
// fast-path counter store. Reads may lag the ledger slightly; writes are
// commutative increments.
type CounterSnapshot struct {
	ClipID        string  `json:"clipId"`
	VoteCount     int64   `json:"voteCount"`
	WeightedScore float64 `json:"weightedScore"`
}

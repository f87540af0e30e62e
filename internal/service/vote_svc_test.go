package service

import (
	"testing"
	"time"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
)

func votingSlot(position int, endsIn time.Duration, now time.Time) *model.Slot {
	ends := now.Add(endsIn)
	return &model.Slot{
		ID:           "slot-1",
		SeasonID:     "season-1",
		Position:     position,
		Status:       model.SlotVoting,
		VotingEndsAt: &ends,
	}
}

func lockedSlot(position int) *model.Slot {
	return &model.Slot{
		ID:       "slot-1",
		SeasonID: "season-1",
		Position: position,
		Status:   model.SlotLocked,
	}
}

func activeClip(position int) *model.Clip {
	return &model.Clip{
		ID:           "clip-1",
		SeasonID:     "season-1",
		SlotPosition: position,
		Status:       model.ClipActive,
	}
}

func TestCheckTiming(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	freeze := 2 * time.Minute

	tests := []struct {
		name string
		slot *model.Slot
		want string // expected code, "" for accept
	}{
		{"well before deadline", votingSlot(1, time.Hour, now), ""},
		{"just outside freeze", votingSlot(1, freeze+time.Second, now), ""},
		{"inside freeze window", votingSlot(1, time.Minute, now), CodeVotingFrozen},
		{"exactly at deadline", votingSlot(1, 0, now), CodeVotingFrozen},
		{"past deadline", votingSlot(1, -time.Minute, now), CodeVotingExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := checkTiming(tt.slot, now, freeze)
			got := ""
			if verr != nil {
				got = verr.Code
			}
			if got != tt.want {
				t.Errorf("checkTiming() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckTiming_FailsOpenWithoutDeadline(t *testing.T) {
	now := time.Now()
	slot := &model.Slot{Status: model.SlotVoting, Position: 1}

	if verr := checkTiming(slot, now, 2*time.Minute); verr != nil {
		t.Errorf("slot without deadline rejected with %q, want accept", verr.Code)
	}
}

func TestCheckTiming_ZeroFreezeDisablesWindow(t *testing.T) {
	now := time.Now()
	slot := votingSlot(1, time.Second, now)

	if verr := checkTiming(slot, now, 0); verr != nil {
		t.Errorf("freeze disabled but got %q", verr.Code)
	}
}

func TestValidateTarget(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	freeze := 2 * time.Minute

	rejected := activeClip(1)
	rejected.Status = model.ClipRejected
	pending := activeClip(1)
	pending.Status = model.ClipPending
	wrongSlot := activeClip(3)

	waiting := votingSlot(1, time.Hour, now)
	waiting.Status = model.SlotWaitingForClips
	waiting.VotingEndsAt = nil

	tests := []struct {
		name string
		clip *model.Clip
		slot *model.Slot
		want string
	}{
		{"valid vote", activeClip(1), votingSlot(1, time.Hour, now), ""},
		{"rejected clip", rejected, votingSlot(1, time.Hour, now), CodeInvalidClipStatus},
		{"pending clip", pending, votingSlot(1, time.Hour, now), CodeInvalidClipStatus},
		{"slot waiting for clips", activeClip(1), waiting, CodeWaitingForClips},
		{"expired slot", activeClip(1), votingSlot(1, -time.Hour, now), CodeVotingExpired},
		{"frozen slot", activeClip(1), votingSlot(1, time.Minute, now), CodeVotingFrozen},
		{"clip from another slot", wrongSlot, votingSlot(1, time.Hour, now), CodeWrongSlot},
		{"locked slot", activeClip(1), lockedSlot(1), CodeNoActiveSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := validateTarget(tt.clip, tt.slot, now, freeze)
			got := ""
			if verr != nil {
				got = verr.Code
			}
			if got != tt.want {
				t.Errorf("validateTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateTarget_WrongSlotBeatsFreeze(t *testing.T) {
	// A clip from another slot reports the slot mismatch even inside the
	// freeze window; only a passed deadline outranks it.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	freeze := 2 * time.Minute
	clip := activeClip(3)

	verr := validateTarget(clip, votingSlot(1, time.Minute, now), now, freeze)
	if verr == nil || verr.Code != CodeWrongSlot {
		t.Errorf("frozen window: got %v, want %s", verr, CodeWrongSlot)
	}

	verr = validateTarget(clip, votingSlot(1, -time.Minute, now), now, freeze)
	if verr == nil || verr.Code != CodeVotingExpired {
		t.Errorf("past deadline: got %v, want %s", verr, CodeVotingExpired)
	}
}

func TestValidateTarget_ChecksStatusBeforePosition(t *testing.T) {
	// A rejected clip in the wrong slot reports the status problem, not
	// the slot mismatch.
	now := time.Now()
	clip := activeClip(5)
	clip.Status = model.ClipEliminated

	verr := validateTarget(clip, votingSlot(1, time.Hour, now), now, 0)
	if verr == nil || verr.Code != CodeInvalidClipStatus {
		t.Fatalf("got %v, want %s", verr, CodeInvalidClipStatus)
	}
}

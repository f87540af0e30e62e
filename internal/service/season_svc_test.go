package service

import (
	"testing"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
)

// advancePlan mirrors the winner-assignment transaction's decision logic
// for unit testing without a database: which loser outcome applies, what
// the next slot becomes, and whether the season ends.
type advancePlan struct {
	loserOutcome string // "eliminated" or "carried"
	nextStatus   string // "", voting, waiting_for_clips
	finished     bool
}

func planAdvance(position, totalSlots int, policy string, advance bool, nextActiveClips int) advancePlan {
	p := advancePlan{loserOutcome: "eliminated"}
	seasonDone := position+1 > totalSlots

	if policy == repository.PolicyCarryForward && !seasonDone {
		p.loserOutcome = "carried"
	}
	if !advance {
		return p
	}
	if seasonDone {
		p.finished = true
		return p
	}
	if nextActiveClips > 0 {
		p.nextStatus = model.SlotVoting
	} else {
		p.nextStatus = model.SlotWaitingForClips
	}
	return p
}

func TestPlanAdvance_MidSeason(t *testing.T) {
	p := planAdvance(3, 10, repository.PolicyEliminate, true, 5)

	if p.loserOutcome != "eliminated" {
		t.Errorf("losers = %q, want eliminated", p.loserOutcome)
	}
	if p.nextStatus != model.SlotVoting {
		t.Errorf("next status = %q, want voting", p.nextStatus)
	}
	if p.finished {
		t.Error("season should not finish mid-bracket")
	}
}

func TestPlanAdvance_NextSlotEmpty(t *testing.T) {
	p := planAdvance(3, 10, repository.PolicyEliminate, true, 0)

	if p.nextStatus != model.SlotWaitingForClips {
		t.Errorf("next status = %q, want waiting_for_clips", p.nextStatus)
	}
}

func TestPlanAdvance_FinalSlotFinishesSeason(t *testing.T) {
	p := planAdvance(10, 10, repository.PolicyEliminate, true, 0)

	if !p.finished {
		t.Error("locking the final slot should finish the season")
	}
	if p.nextStatus != "" {
		t.Errorf("finished season has no next slot, got %q", p.nextStatus)
	}
}

func TestPlanAdvance_CarryForward(t *testing.T) {
	p := planAdvance(3, 10, repository.PolicyCarryForward, true, 4)

	if p.loserOutcome != "carried" {
		t.Errorf("losers = %q, want carried", p.loserOutcome)
	}
}

func TestPlanAdvance_CarryForwardOnFinalSlotEliminates(t *testing.T) {
	// There is no next slot to carry into, so the policy degrades to
	// elimination.
	p := planAdvance(10, 10, repository.PolicyCarryForward, true, 0)

	if p.loserOutcome != "eliminated" {
		t.Errorf("losers = %q, want eliminated on final slot", p.loserOutcome)
	}
	if !p.finished {
		t.Error("final slot should finish the season")
	}
}

func TestPlanAdvance_NoAdvanceLeavesSeasonAlone(t *testing.T) {
	p := planAdvance(3, 10, repository.PolicyEliminate, false, 5)

	if p.nextStatus != "" || p.finished {
		t.Errorf("advance=false must not move the season, got %+v", p)
	}
}

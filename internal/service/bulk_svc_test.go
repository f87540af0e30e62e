package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
)

func TestNormalizeBatch(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr error
	}{
		{"passes valid ids through", []string{"a", "b", "c"}, []string{"a", "b", "c"}, nil},
		{"dedupes repeated ids", []string{"a", "b", "a", "b"}, []string{"a", "b"}, nil},
		{"drops empty ids", []string{"", "a", ""}, []string{"a"}, nil},
		{"nil batch", nil, nil, ErrEmptyBatch},
		{"all ids empty", []string{"", ""}, nil, ErrEmptyBatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBatch(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("id[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeBatch_SizeLimit(t *testing.T) {
	ids := make([]string, MaxBulkSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("clip-%d", i)
	}

	if _, err := normalizeBatch(ids); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("oversize batch err = %v, want ErrBatchTooLarge", err)
	}

	// Duplicates collapse below the limit, so the same raw length passes
	// when half the ids repeat.
	for i := range ids {
		ids[i] = fmt.Sprintf("clip-%d", i%MaxBulkSize)
	}
	if _, err := normalizeBatch(ids); err != nil {
		t.Errorf("deduped batch err = %v, want nil", err)
	}

	exact := make([]string, MaxBulkSize)
	for i := range exact {
		exact[i] = fmt.Sprintf("clip-%d", i)
	}
	if _, err := normalizeBatch(exact); err != nil {
		t.Errorf("batch of exactly %d err = %v, want nil", MaxBulkSize, err)
	}
}

// bulkPlan mirrors the batch-transition transaction's per-slot decision
// logic: which ids winner protection blocks, which process, and whether a
// voting slot is left with zero active clips and must demote.
type bulkPlan struct {
	processed []string
	blocked   []string
	demoted   bool
}

func planBulk(action string, ids []string, winners map[string]bool, slotStatus string, activeClips map[string]bool) bulkPlan {
	var p bulkPlan
	remaining := make(map[string]bool, len(activeClips))
	for id := range activeClips {
		remaining[id] = true
	}

	for _, id := range ids {
		// Winner protection applies to destructive removal only.
		if action == repository.BulkDelete && winners[id] {
			p.blocked = append(p.blocked, id)
			continue
		}
		p.processed = append(p.processed, id)
		switch action {
		case repository.BulkApprove:
			remaining[id] = true
		case repository.BulkDelete, repository.BulkReject, repository.BulkReset:
			delete(remaining, id)
		}
	}

	p.demoted = slotStatus == model.SlotVoting && len(remaining) == 0
	return p
}

func TestPlanBulk_DeleteAllActiveDemotesVotingSlot(t *testing.T) {
	active := map[string]bool{"a": true, "b": true}
	p := planBulk(repository.BulkDelete, []string{"a", "b"}, nil, model.SlotVoting, active)

	if len(p.processed) != 2 || len(p.blocked) != 0 {
		t.Fatalf("processed %v blocked %v, want all processed", p.processed, p.blocked)
	}
	if !p.demoted {
		t.Error("emptying a voting slot must demote it to waiting_for_clips")
	}
}

func TestPlanBulk_SurvivingClipKeepsSlotVoting(t *testing.T) {
	active := map[string]bool{"a": true, "b": true}
	p := planBulk(repository.BulkDelete, []string{"a"}, nil, model.SlotVoting, active)

	if p.demoted {
		t.Error("a slot with a surviving active clip must stay voting")
	}
}

func TestPlanBulk_WinnerBlockedFromDeletion(t *testing.T) {
	active := map[string]bool{"winner": true, "other": true}
	winners := map[string]bool{"winner": true}
	p := planBulk(repository.BulkDelete, []string{"winner", "other"}, winners, model.SlotVoting, active)

	if len(p.blocked) != 1 || p.blocked[0] != "winner" {
		t.Fatalf("blocked = %v, want [winner]", p.blocked)
	}
	if len(p.processed) != 1 || p.processed[0] != "other" {
		t.Fatalf("processed = %v, want [other]", p.processed)
	}
	// The protected winner is still active, so the slot keeps voting.
	if p.demoted {
		t.Error("slot with the blocked winner still active must not demote")
	}
}

func TestPlanBulk_RejectAllActiveAlsoDemotes(t *testing.T) {
	// Demotion keys off remaining active clips, not the action: rejecting
	// the last active clip empties the slot the same way deletion does.
	active := map[string]bool{"a": true}
	p := planBulk(repository.BulkReject, []string{"a"}, nil, model.SlotVoting, active)

	if !p.demoted {
		t.Error("rejecting the last active clip must demote the voting slot")
	}
}

func TestPlanBulk_WinnerProtectionOnlyForDelete(t *testing.T) {
	// Reject is not destructive removal; winner protection does not apply.
	winners := map[string]bool{"winner": true}
	p := planBulk(repository.BulkReject, []string{"winner"}, winners, model.SlotLocked, map[string]bool{"winner": true})

	if len(p.blocked) != 0 {
		t.Errorf("blocked = %v, want none for reject", p.blocked)
	}
}

func TestPlanBulk_NonVotingSlotNeverDemotes(t *testing.T) {
	p := planBulk(repository.BulkDelete, []string{"a"}, nil, model.SlotLocked, map[string]bool{"a": true})

	if p.demoted {
		t.Error("demotion applies to voting slots only")
	}
}

func TestPlanBulk_ApproveRefillsEmptySlot(t *testing.T) {
	p := planBulk(repository.BulkApprove, []string{"a"}, nil, model.SlotVoting, map[string]bool{})

	if p.demoted {
		t.Error("approving into an empty voting slot leaves it populated")
	}
}

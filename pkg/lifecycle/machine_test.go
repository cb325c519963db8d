package lifecycle

import (
	"testing"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

func TestMachine_Decide_Advance(t *testing.T) {
	m := NewMachine()

	tests := []struct {
		name       string
		item       Item
		req        Request
		wantAdd    []string
		wantRemove []string
		wantNoOp   bool
		wantErr    func(error) bool
	}{
		{
			name:    "unlabeled item enters backlog",
			item:    Item{Number: 1, Labels: []string{"feature"}},
			req:     Request{Stage: StageProduct, Action: ActionAdvance, Target: LabelBacklog},
			wantAdd: []string{LabelBacklog},
		},
		{
			name:       "backlog to prioritized",
			item:       Item{Number: 2, Labels: []string{LabelBacklog}},
			req:        Request{Stage: StageProduct, Action: ActionAdvance, Target: LabelPrioritized},
			wantAdd:    []string{LabelPrioritized},
			wantRemove: []string{LabelBacklog},
		},
		{
			name:       "enrich prioritized to ready-for-breakdown",
			item:       Item{Number: 3, Labels: []string{LabelPrioritized}},
			req:        Request{Stage: StageProduct, Action: ActionEnrich, Target: LabelReadyForBreakdown},
			wantAdd:    []string{LabelReadyForBreakdown},
			wantRemove: []string{LabelPrioritized},
		},
		{
			name:       "team lead marks broken-down",
			item:       Item{Number: 4, Labels: []string{LabelReadyForBreakdown}},
			req:        Request{Stage: StageTeamLead, Action: ActionAdvance, Target: LabelBrokenDown},
			wantAdd:    []string{LabelBrokenDown},
			wantRemove: []string{LabelReadyForBreakdown},
		},
		{
			name:       "dev moves in-progress to in-review",
			item:       Item{Number: 5, Labels: []string{CategoryFrontend, LabelInProgress}},
			req:        Request{Stage: StageDev, Category: CategoryFrontend, Action: ActionAdvance, Target: LabelInReview},
			wantAdd:    []string{LabelInReview},
			wantRemove: []string{LabelInProgress},
		},
		{
			name:       "qa marks done",
			item:       Item{Number: 6, Labels: []string{CategoryBackend, LabelInReview}},
			req:        Request{Stage: StageQA, Action: ActionAdvance, Target: LabelDone},
			wantAdd:    []string{LabelDone},
			wantRemove: []string{LabelInReview},
		},
		{
			name:     "already in target is a no-op",
			item:     Item{Number: 7, Labels: []string{LabelPrioritized}},
			req:      Request{Stage: StageProduct, Action: ActionAdvance, Target: LabelPrioritized},
			wantNoOp: true,
		},
		{
			name:    "skipping a stage fails",
			item:    Item{Number: 8, Labels: []string{LabelBacklog}},
			req:     Request{Stage: StageQA, Action: ActionAdvance, Target: LabelDone},
			wantErr: armyerrors.IsIllegalTransition,
		},
		{
			name:    "stage does not own the transition",
			item:    Item{Number: 9, Labels: []string{LabelBacklog}},
			req:     Request{Stage: StageTeamLead, Action: ActionAdvance, Target: LabelPrioritized},
			wantErr: armyerrors.IsIllegalTransition,
		},
		{
			name:    "closed item is never eligible",
			item:    Item{Number: 10, Labels: []string{LabelBacklog}, Closed: true},
			req:     Request{Stage: StageProduct, Action: ActionAdvance, Target: LabelPrioritized},
			wantErr: armyerrors.IsIllegalTransition,
		},
		{
			name:    "enrich outside product stage fails",
			item:    Item{Number: 11, Labels: []string{LabelPrioritized}},
			req:     Request{Stage: StageTeamLead, Action: ActionEnrich, Target: LabelReadyForBreakdown},
			wantErr: armyerrors.IsIllegalTransition,
		},
		{
			name:    "two lifecycle labels is rejected",
			item:    Item{Number: 12, Labels: []string{LabelBacklog, LabelPrioritized}},
			req:     Request{Stage: StageProduct, Action: ActionAdvance, Target: LabelReadyForBreakdown},
			wantErr: armyerrors.IsIllegalTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mut, err := m.Decide(tt.item, tt.req)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("Decide() expected error, got mutation %+v", mut)
				}
				if !tt.wantErr(err) {
					t.Fatalf("Decide() error type mismatch: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decide() unexpected error: %v", err)
			}
			if mut.NoOp != tt.wantNoOp {
				t.Errorf("NoOp = %v, want %v", mut.NoOp, tt.wantNoOp)
			}
			if !sameLabels(mut.Add, tt.wantAdd) {
				t.Errorf("Add = %v, want %v", mut.Add, tt.wantAdd)
			}
			if !sameLabels(mut.Remove, tt.wantRemove) {
				t.Errorf("Remove = %v, want %v", mut.Remove, tt.wantRemove)
			}
		})
	}
}

func TestMachine_Decide_AdvanceTwiceIsIdempotent(t *testing.T) {
	m := NewMachine()
	item := Item{Number: 42, Labels: []string{LabelBacklog}}
	req := Request{Stage: StageProduct, Action: ActionAdvance, Target: LabelPrioritized}

	mut, err := m.Decide(item, req)
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	item.Labels = Apply(item.Labels, mut)

	mut2, err := m.Decide(item, req)
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if !mut2.NoOp {
		t.Fatalf("second advance should be a no-op, got %+v", mut2)
	}
	after := Apply(item.Labels, mut2)
	if label, count := CurrentLabel(after); label != LabelPrioritized || count != 1 {
		t.Errorf("labels after double advance = %v", after)
	}
}

func TestMachine_Decide_Claim(t *testing.T) {
	m := NewMachine()

	tests := []struct {
		name    string
		item    Item
		req     Request
		wantAdd []string
		wantErr func(error) bool
	}{
		{
			name:    "frontend item claimable by frontend dev",
			item:    Item{Number: 43, Labels: []string{CategoryFrontend}},
			req:     Request{Stage: StageDev, Category: CategoryFrontend, Action: ActionClaim},
			wantAdd: []string{LabelInProgress},
		},
		{
			name:    "frontend item not claimable by backend dev",
			item:    Item{Number: 43, Labels: []string{CategoryFrontend}},
			req:     Request{Stage: StageDev, Category: CategoryBackend, Action: ActionClaim},
			wantErr: armyerrors.IsIllegalTransition,
		},
		{
			name:    "claim marker already present",
			item:    Item{Number: 43, Labels: []string{CategoryFrontend, LabelInProgress}},
			req:     Request{Stage: StageDev, Category: CategoryFrontend, Action: ActionClaim},
			wantErr: armyerrors.IsClaimConflict,
		},
		{
			name:    "item already in review",
			item:    Item{Number: 44, Labels: []string{CategoryBackend, LabelInReview}},
			req:     Request{Stage: StageDev, Category: CategoryBackend, Action: ActionClaim},
			wantErr: armyerrors.IsIllegalTransition,
		},
		{
			name:    "closed item",
			item:    Item{Number: 45, Labels: []string{CategoryFullstack}, Closed: true},
			req:     Request{Stage: StageDev, Category: CategoryFullstack, Action: ActionClaim},
			wantErr: armyerrors.IsIllegalTransition,
		},
		{
			name:    "non-dev stage cannot claim",
			item:    Item{Number: 46, Labels: []string{CategoryFrontend}},
			req:     Request{Stage: StageQA, Category: CategoryFrontend, Action: ActionClaim},
			wantErr: armyerrors.IsIllegalTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mut, err := m.Decide(tt.item, tt.req)
			if tt.wantErr != nil {
				if err == nil || !tt.wantErr(err) {
					t.Fatalf("Decide() = (%+v, %v), want typed error", mut, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decide() unexpected error: %v", err)
			}
			if !sameLabels(mut.Add, tt.wantAdd) {
				t.Errorf("Add = %v, want %v", mut.Add, tt.wantAdd)
			}
		})
	}
}

// TestMachine_RacingClaims models two claimants racing on the same item:
// the first successful label write wins, the second observes the marker and
// must abort with a claim conflict.
func TestMachine_RacingClaims(t *testing.T) {
	m := NewMachine()
	item := Item{Number: 43, Labels: []string{CategoryFrontend}}

	first, err := m.Decide(item, Request{Stage: StageDev, Category: CategoryFrontend, Action: ActionClaim})
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	item.Labels = Apply(item.Labels, first)

	_, err = m.Decide(item, Request{Stage: StageDev, Category: CategoryFrontend, Action: ActionClaim})
	if !armyerrors.IsClaimConflict(err) {
		t.Fatalf("second claim should lose the race, got %v", err)
	}
}

// TestMachine_SingleLifecycleLabelInvariant walks every state reachable from
// backlog (and from a freshly created sub-item) through every mutation the
// machine approves and asserts no reachable state carries two lifecycle
// labels.
func TestMachine_SingleLifecycleLabelInvariant(t *testing.T) {
	m := NewMachine()

	requests := []Request{
		{Stage: StageProduct, Action: ActionAdvance, Target: LabelBacklog},
		{Stage: StageProduct, Action: ActionAdvance, Target: LabelPrioritized},
		{Stage: StageProduct, Action: ActionEnrich, Target: LabelReadyForBreakdown},
		{Stage: StageTeamLead, Action: ActionAdvance, Target: LabelBrokenDown},
		{Stage: StageDev, Category: CategoryFrontend, Action: ActionClaim},
		{Stage: StageDev, Category: CategoryFrontend, Action: ActionAdvance, Target: LabelInReview},
		{Stage: StageQA, Action: ActionAdvance, Target: LabelDone},
	}

	// Seeds: a new parent item before backlog, and a freshly created sub-item.
	seeds := [][]string{
		{},
		{CategoryFrontend},
	}

	for _, seed := range seeds {
		visited := map[string]bool{}
		frontier := [][]string{seed}
		for len(frontier) > 0 {
			labels := frontier[0]
			frontier = frontier[1:]
			key := labelKey(labels)
			if visited[key] {
				continue
			}
			visited[key] = true

			if _, count := CurrentLabel(labels); count > 1 {
				t.Fatalf("reachable state %v carries %d lifecycle labels", labels, count)
			}

			for _, req := range requests {
				mut, err := m.Decide(Item{Number: 1, Labels: labels}, req)
				if err != nil || mut.NoOp {
					continue
				}
				frontier = append(frontier, Apply(labels, mut))
			}
		}
	}
}

func TestMachine_CanCreate(t *testing.T) {
	m := NewMachine()
	if !m.CanCreate(0) {
		t.Error("empty tracker should allow creation")
	}
	if !m.CanCreate(DefaultOpenItemCap - 1) {
		t.Error("one slot left should allow creation")
	}
	if m.CanCreate(DefaultOpenItemCap) {
		t.Error("cap reached should block creation")
	}

	small := NewMachine(WithOpenItemCap(2))
	if small.CanCreate(2) {
		t.Error("custom cap should block at 2")
	}
}

func sameLabels(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func labelKey(labels []string) string {
	key := ""
	for _, l := range labels {
		key += l + "|"
	}
	return key
}

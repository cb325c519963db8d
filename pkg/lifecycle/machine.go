package lifecycle

import (
	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

// DefaultOpenItemCap is the default ceiling on open items before the first
// stage stops creating new ones. Transitions of existing items are never
// blocked by the cap.
const DefaultOpenItemCap = 8

// Action is a requested label operation on a work item.
type Action string

const (
	// ActionClaim takes exclusive ownership of a category-labeled item by
	// applying the in-progress marker.
	ActionClaim Action = "claim"
	// ActionAdvance moves an item from its current lifecycle label to the
	// exact successor.
	ActionAdvance Action = "advance"
	// ActionEnrich is the product stage's enrichment of a prioritized item:
	// an advance to ready-for-breakdown accompanied by a comment.
	ActionEnrich Action = "enrich"
)

// Item is the machine's view of a work item: the transient label set and
// open/closed status fetched from the tracker for this run.
type Item struct {
	Number int
	Labels []string
	Closed bool
}

// Request describes what a stage wants to do to an item.
type Request struct {
	Stage    Stage
	Category string // dev sub-stage; required for StageDev, empty otherwise
	Action   Action
	Target   string // target lifecycle label for advance/enrich
}

// Mutation is the label change the caller must apply on the tracker. A NoOp
// mutation means the item is already in the requested state; applying it
// again must change nothing.
type Mutation struct {
	Add    []string
	Remove []string
	NoOp   bool
}

// stageAdvances maps each stage to the advances it owns: target label ->
// required predecessor. A stage asking for a transition outside its row is
// rejected regardless of the item's labels.
var stageAdvances = map[Stage]map[string]string{
	StageProduct: {
		LabelBacklog:           "",
		LabelPrioritized:       LabelBacklog,
		LabelReadyForBreakdown: LabelPrioritized,
	},
	StageTeamLead: {
		LabelBrokenDown: LabelReadyForBreakdown,
	},
	StageDev: {
		LabelInReview: LabelInProgress,
	},
	StageQA: {
		LabelDone: LabelInReview,
	},
}

// Machine decides, for a given work item and a given crew's intended stage,
// whether the crew may act and what label mutation follows.
type Machine struct {
	openItemCap int
}

// Option is a functional option for configuring a Machine.
type Option func(*Machine)

// WithOpenItemCap overrides the open-item creation cap.
func WithOpenItemCap(cap int) Option {
	return func(m *Machine) {
		if cap > 0 {
			m.openItemCap = cap
		}
	}
}

// NewMachine creates a label state machine with default settings.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{openItemCap: DefaultOpenItemCap}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenItemCap returns the configured creation cap.
func (m *Machine) OpenItemCap() int {
	return m.openItemCap
}

// CanCreate reports whether the first stage may create another item given
// the current open-item count. Checked before each creation, not once per
// run, so a run that crosses the cap mid-batch stops creating but keeps
// what it already created.
func (m *Machine) CanCreate(openCount int) bool {
	return openCount < m.openItemCap
}

// Decide evaluates a request against an item's current state and returns
// the approved mutation.
//
// Errors: *armyerrors.IllegalTransitionError when a precondition label is
// missing or a stage would be skipped; *armyerrors.ClaimConflictError when
// the exclusive claim marker is already present.
func (m *Machine) Decide(item Item, req Request) (Mutation, error) {
	if item.Closed {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", req.Target,
			"item is closed")
	}

	switch req.Action {
	case ActionClaim:
		return m.decideClaim(item, req)
	case ActionAdvance, ActionEnrich:
		return m.decideAdvance(item, req)
	default:
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", req.Target,
			"unknown action "+string(req.Action))
	}
}

// decideClaim applies the optimistic-lock convention: the in-progress label
// is the exclusive claim marker, and a claimant that observes it already
// present must abort rather than double-process the item.
func (m *Machine) decideClaim(item Item, req Request) (Mutation, error) {
	if req.Stage != StageDev {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", LabelInProgress,
			"only the dev stage claims items")
	}
	if req.Category == "" || !IsCategoryLabel(req.Category) {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", LabelInProgress,
			"dev claim requires a category")
	}
	if !HasLabel(item.Labels, req.Category) {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", LabelInProgress,
			"item does not carry the "+req.Category+" label")
	}
	if HasLabel(item.Labels, LabelInProgress) {
		return Mutation{}, armyerrors.NewClaimConflict(item.Number, string(req.Stage),
			"claim marker already present")
	}
	if current, _ := CurrentLabel(item.Labels); current != "" {
		// A sub-item past in-progress (in-review, done) or still carrying a
		// parent lifecycle label is not claimable.
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, current, LabelInProgress,
			"item is not in a claimable state")
	}

	return Mutation{Add: []string{LabelInProgress}}, nil
}

func (m *Machine) decideAdvance(item Item, req Request) (Mutation, error) {
	if req.Action == ActionEnrich {
		if req.Stage != StageProduct || req.Target != LabelReadyForBreakdown {
			return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", req.Target,
				"enrich is the product stage's advance to "+LabelReadyForBreakdown)
		}
	}

	owned, ok := stageAdvances[req.Stage]
	if !ok {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", req.Target,
			"unknown stage "+string(req.Stage))
	}
	required, ok := owned[req.Target]
	if !ok {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, "", req.Target,
			"stage "+string(req.Stage)+" does not own this transition")
	}

	current, count := CurrentLabel(item.Labels)
	if count > 1 {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, current, req.Target,
			"item carries more than one lifecycle label")
	}

	// Re-applying a completed transition is a no-op, never a double move.
	if current == req.Target {
		return Mutation{NoOp: true}, nil
	}

	if current != required {
		return Mutation{}, armyerrors.NewIllegalTransition(item.Number, current, req.Target,
			"transition requires the "+displayLabel(required)+" label")
	}

	mut := Mutation{Add: []string{req.Target}}
	if required != "" {
		mut.Remove = []string{required}
	}
	return mut, nil
}

// Apply returns the label set that results from applying a mutation.
// Used by invariant tests and by callers that track state locally.
func Apply(labels []string, mut Mutation) []string {
	if mut.NoOp {
		return labels
	}
	out := make([]string, 0, len(labels)+len(mut.Add))
	for _, l := range labels {
		removed := false
		for _, r := range mut.Remove {
			if l == r {
				removed = true
				break
			}
		}
		if !removed {
			out = append(out, l)
		}
	}
	for _, a := range mut.Add {
		if !HasLabel(out, a) {
			out = append(out, a)
		}
	}
	return out
}

func displayLabel(label string) string {
	if label == "" {
		return "no lifecycle"
	}
	return label
}

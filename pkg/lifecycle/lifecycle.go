// Package lifecycle implements the label-driven state machine that governs
// how work items move through the pipeline.
//
// A work item carries at most one lifecycle label at a time, plus zero or
// more category labels (frontend/backend/fullstack) that name the dev
// sub-stage owning it. Parent items advance
// backlog -> prioritized -> ready-for-breakdown -> broken-down; sub-items
// created by breakdown start with only a category label, are claimed into
// in-progress, then advance in-progress -> in-review -> done.
//
// The machine is pure decision logic: it never calls the tracker. Callers
// apply the returned mutation.
package lifecycle

// Stage identifies one pipeline phase. Each stage corresponds to one crew
// and one or more scheduled triggers.
type Stage string

const (
	// StageProduct creates and prioritizes backlog items.
	StageProduct Stage = "product"
	// StageTeamLead breaks features down into sub-items.
	StageTeamLead Stage = "team_lead"
	// StageDev claims and implements category-labeled sub-items.
	StageDev Stage = "dev"
	// StageQA reviews and merges pull requests.
	StageQA Stage = "qa"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// AllStages returns the pipeline stages in their data-dependency order.
func AllStages() []Stage {
	return []Stage{StageProduct, StageTeamLead, StageDev, StageQA}
}

// Lifecycle labels, in pipeline order.
const (
	LabelBacklog           = "backlog"
	LabelPrioritized       = "prioritized"
	LabelReadyForBreakdown = "ready-for-breakdown"
	LabelBrokenDown        = "broken-down"
	LabelInProgress        = "in-progress"
	LabelInReview          = "in-review"
	LabelDone              = "done"
)

// Category labels marking which dev sub-stage owns an item. Non-exclusive
// with lifecycle labels; they persist through in-progress and in-review.
const (
	CategoryFrontend  = "frontend"
	CategoryBackend   = "backend"
	CategoryFullstack = "fullstack"
)

// lifecycleOrder is the ordered sequence of lifecycle labels. The empty
// string is the implicit starting state of an unlabeled item.
var lifecycleOrder = []string{
	LabelBacklog,
	LabelPrioritized,
	LabelReadyForBreakdown,
	LabelBrokenDown,
	LabelInProgress,
	LabelInReview,
	LabelDone,
}

// predecessor maps each lifecycle label to the exact label that must be
// present for an advance into it. backlog's predecessor is the unlabeled
// state; in-progress is reachable only through a claim, never an advance.
var predecessor = map[string]string{
	LabelBacklog:           "",
	LabelPrioritized:       LabelBacklog,
	LabelReadyForBreakdown: LabelPrioritized,
	LabelBrokenDown:        LabelReadyForBreakdown,
	LabelInReview:          LabelInProgress,
	LabelDone:              LabelInReview,
}

// LifecycleLabels returns the ordered lifecycle label sequence.
func LifecycleLabels() []string {
	out := make([]string, len(lifecycleOrder))
	copy(out, lifecycleOrder)
	return out
}

// IsLifecycleLabel reports whether label is one of the lifecycle labels.
func IsLifecycleLabel(label string) bool {
	for _, l := range lifecycleOrder {
		if l == label {
			return true
		}
	}
	return false
}

// IsCategoryLabel reports whether label names a dev sub-stage.
func IsCategoryLabel(label string) bool {
	switch label {
	case CategoryFrontend, CategoryBackend, CategoryFullstack:
		return true
	}
	return false
}

// Categories returns the valid dev category labels.
func Categories() []string {
	return []string{CategoryFrontend, CategoryBackend, CategoryFullstack}
}

// CurrentLabel returns the lifecycle label carried by the given label set
// and how many lifecycle labels are present. A well-formed item has count
// zero or one; a count above one is an invariant violation produced outside
// the core (manual edits on the tracker).
func CurrentLabel(labels []string) (label string, count int) {
	for _, l := range labels {
		if IsLifecycleLabel(l) {
			if count == 0 {
				label = l
			}
			count++
		}
	}
	return label, count
}

// Category returns the first category label in the set, or "".
func Category(labels []string) string {
	for _, l := range labels {
		if IsCategoryLabel(l) {
			return l
		}
	}
	return ""
}

// HasLabel reports whether the label set contains the given label.
func HasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

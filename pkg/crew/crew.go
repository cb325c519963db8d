// Package crew defines the AI collaborators that propose work for each
// pipeline stage. A crew never touches the tracker: it receives a snapshot
// of items and cross-stage context, and returns a structured proposal the
// job runner validates and applies.
package crew

import (
	"context"

	"github.com/khenlevy/ai-army/pkg/lifecycle"
	"github.com/khenlevy/ai-army/pkg/tracker"
)

// Input is the snapshot a crew reasons over.
type Input struct {
	// Context is the aggregated handoff from the other stages.
	Context string
	// Items are the work items this stage operates on.
	Items []tracker.WorkItem
	// PullRequests is the open review queue (QA stage only).
	PullRequests []tracker.PullRequest
	// Category narrows a dev crew to its work type.
	Category string
	// OpenItems is the current count of open items, used by creating
	// stages to respect the open-item cap.
	OpenItems int
	// OpenItemCap is the maximum number of open items allowed.
	OpenItemCap int
}

// TargetClaim marks a label action as an exclusive claim rather than a
// lifecycle advance.
const TargetClaim = "claim"

// LabelAction is one proposed item movement: either an advance to a
// lifecycle label, or a claim.
type LabelAction struct {
	Item   int    `json:"item"`
	Target string `json:"target"`
}

// NewItemProposal is a work item a crew wants created.
type NewItemProposal struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category,omitempty"`
	Parent   int    `json:"parent,omitempty"`
}

// ItemComment is a comment to post on an existing item.
type ItemComment struct {
	Item int    `json:"item"`
	Body string `json:"body"`
}

// Proposal is a crew's full output for one run. Every field is advisory:
// the runner checks each action against the label state machine and the
// open-item cap before anything reaches the tracker.
type Proposal struct {
	Actions  []LabelAction     `json:"actions"`
	NewItems []NewItemProposal `json:"new_items"`
	Comments []ItemComment     `json:"comments"`
	Merges   []int             `json:"merges"`
	Summary  string            `json:"summary"`
}

// Crew produces proposals for one pipeline stage.
type Crew interface {
	// Stage identifies which pipeline stage this crew serves.
	Stage() lifecycle.Stage

	// Kickoff runs the crew over the input and returns its proposal.
	Kickoff(ctx context.Context, input Input) (*Proposal, error)
}

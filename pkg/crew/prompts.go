package crew

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khenlevy/ai-army/pkg/lifecycle"
	"github.com/khenlevy/ai-army/pkg/tracker"
)

// Per-stage system prompts. Each prompt names the stage's role, the labels
// it is allowed to move items between, and the JSON shape of the reply.
const (
	productSystemPrompt = `You are the product manager of an autonomous development pipeline.
You review the backlog of a software project, decide what matters next, and
keep a healthy stream of well-specified features flowing to the team lead.

You may:
- move an item from "backlog" to "prioritized" when it is worth doing next
- enrich a "prioritized" item with acceptance criteria in a comment and move
  it to "ready-for-breakdown"
- propose brand new feature items (they start in "backlog")

Never exceed the open-item budget you are given. Prefer enriching existing
prioritized items over creating new ones.`

	teamLeadSystemPrompt = `You are the team lead of an autonomous development pipeline.
You take features marked "ready-for-breakdown" and split each one into
concrete, independently implementable sub-items.

For every feature you break down:
- propose sub-items with a clear title and body; give each a category of
  "frontend", "backend", or "fullstack"
- set the parent field to the feature's item number
- move the feature itself to "broken-down"

A sub-item should be completable in a single working session. Do not break
down features that are not labeled "ready-for-breakdown".`

	devSystemPrompt = `You are a %s developer in an autonomous development pipeline.
You pick up sub-items labeled "%s" and carry them through implementation.

You may:
- claim exactly one unclaimed item (target "claim") to start working on it
- move an item you previously claimed from "in-progress" to "in-review"
  once its implementation is ready, commenting with what was done

Claim at most one new item per run. Never claim an item already labeled
"in-progress"; another developer owns it.`

	qaSystemPrompt = `You are the QA engineer of an autonomous development pipeline.
You review the open pull request queue and decide which are safe to merge.

You may:
- merge a pull request by listing its number in "merges"
- move the work item a merged PR closes from "in-review" to "done"
- comment on a pull request's item when it needs more work instead

Only merge pull requests that are mergeable. A PR body says which item it
closes with a "Closes #N" line.`
)

// systemPrompt returns the stage prompt, with the dev prompt specialized by
// category.
func systemPrompt(stage lifecycle.Stage, category string) string {
	switch stage {
	case lifecycle.StageProduct:
		return productSystemPrompt
	case lifecycle.StageTeamLead:
		return teamLeadSystemPrompt
	case lifecycle.StageDev:
		return fmt.Sprintf(devSystemPrompt, category, category)
	case lifecycle.StageQA:
		return qaSystemPrompt
	default:
		return ""
	}
}

// responseSchema tells the model exactly what to answer with. Kept in the
// user prompt so stage prompts stay about judgment, not formatting.
const responseSchema = `Respond with a single JSON object and nothing else:
{
  "actions":   [{"item": <number>, "target": "<lifecycle label or \"claim\">"}],
  "new_items": [{"title": "...", "body": "...", "category": "frontend|backend|fullstack", "parent": <number or 0>}],
  "comments":  [{"item": <number>, "body": "..."}],
  "merges":    [<pull request numbers>],
  "summary":   "one short paragraph describing what you did and why"
}
Omit or leave empty any field you have no use for. The summary is handed to
the next pipeline stage, so write it for them.`

// buildUserPrompt assembles the run snapshot the model reasons over.
func buildUserPrompt(input Input) (string, error) {
	var b strings.Builder

	if input.Context != "" {
		b.WriteString("## What the other stages did last\n\n")
		b.WriteString(input.Context)
		b.WriteString("\n\n")
	}

	b.WriteString("## Work items\n\n")
	if len(input.Items) == 0 {
		b.WriteString("(none)\n")
	} else {
		items, err := json.MarshalIndent(promptItems(input.Items), "", "  ")
		if err != nil {
			return "", err
		}
		b.Write(items)
		b.WriteString("\n")
	}

	if len(input.PullRequests) > 0 {
		b.WriteString("\n## Open pull requests\n\n")
		prs, err := json.MarshalIndent(promptPRs(input.PullRequests), "", "  ")
		if err != nil {
			return "", err
		}
		b.Write(prs)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nOpen items: %d of %d allowed.\n\n", input.OpenItems, input.OpenItemCap)
	b.WriteString(responseSchema)

	return b.String(), nil
}

// promptItem trims a work item to what the model needs.
type promptItem struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels"`
}

func promptItems(items []tracker.WorkItem) []promptItem {
	out := make([]promptItem, 0, len(items))
	for _, it := range items {
		out = append(out, promptItem{
			Number: it.Number,
			Title:  it.Title,
			Body:   it.Body,
			Labels: it.Labels,
		})
	}
	return out
}

type promptPR struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	Mergeable bool   `json:"mergeable"`
}

func promptPRs(prs []tracker.PullRequest) []promptPR {
	out := make([]promptPR, 0, len(prs))
	for _, pr := range prs {
		out = append(out, promptPR{
			Number:    pr.Number,
			Title:     pr.Title,
			Body:      pr.Body,
			Mergeable: pr.Mergeable,
		})
	}
	return out
}

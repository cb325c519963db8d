// Package tracker wraps the hosted issue tracker behind a small interface:
// listing and mutating work items by label, creating sub-items, and the
// pull-request operations the QA stage needs. All label writes here are
// plain REST calls; transition legality is decided by the caller before a
// write reaches this package.
package tracker

import "context"

// Client is the tracker surface the pipeline depends on.
type Client interface {
	// IsAuthenticated reports whether the configured token is usable.
	IsAuthenticated(ctx context.Context) bool

	// ListOpenItems returns open work items carrying the given label.
	// An empty label lists every open item.
	ListOpenItems(ctx context.Context, label string) ([]WorkItem, error)

	// GetItem fetches a single work item by number.
	GetItem(ctx context.Context, number int) (*WorkItem, error)

	// CreateItem opens a new work item with its initial labels applied
	// in the same call.
	CreateItem(ctx context.Context, item NewItem) (*WorkItem, error)

	// AddLabels attaches labels to an item, preserving existing ones.
	AddLabels(ctx context.Context, number int, labels []string) error

	// RemoveLabel detaches a single label. Removing a label the item
	// does not carry is not an error.
	RemoveLabel(ctx context.Context, number int, label string) error

	// Comment posts a comment on a work item.
	Comment(ctx context.Context, number int, body string) error

	// ListOpenPullRequests returns the open, non-draft review queue.
	ListOpenPullRequests(ctx context.Context) ([]PullRequest, error)

	// MergePullRequest merges a pull request by number.
	MergePullRequest(ctx context.Context, number int) error

	// RateLimit queries the remaining request budget. The query itself
	// does not count against the budget.
	RateLimit(ctx context.Context) (RateSnapshot, error)
}

package tracker

import "time"

// WorkItem is a tracker issue as the pipeline sees it: number, labels, and
// enough metadata for a crew to reason about it.
type WorkItem struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Labels    []string  `json:"labels"`
	Closed    bool      `json:"closed"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewItem describes a work item to create.
type NewItem struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

// PullRequest is the review-queue view consumed by the QA stage.
type PullRequest struct {
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	HeadBranch string    `json:"head_branch"`
	Draft      bool      `json:"draft"`
	Mergeable  bool      `json:"mergeable"`
	URL        string    `json:"url"`
	Author     string    `json:"author"`
	CreatedAt  time.Time `json:"created_at"`
}

// RateSnapshot reports the remaining core API budget.
type RateSnapshot struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

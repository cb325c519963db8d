package tracker

import (
	"context"
	"log/slog"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

// APIClient implements Client against the GitHub REST API.
type APIClient struct {
	client  *gh.Client
	owner   string
	repo    string
	verbose bool
	logger  *slog.Logger
}

// Compile-time check that APIClient implements Client.
var _ Client = (*APIClient)(nil)

// APIClientOption is a functional option for configuring APIClient.
type APIClientOption func(*APIClient)

// WithAPILogger sets a custom logger for the API client.
func WithAPILogger(logger *slog.Logger) APIClientOption {
	return func(c *APIClient) {
		c.logger = logger
	}
}

// WithVerbose enables per-call debug logging.
func WithVerbose(verbose bool) APIClientOption {
	return func(c *APIClient) {
		c.verbose = verbose
	}
}

// NewAPIClient creates a tracker client for the given "owner/repo" slug.
func NewAPIClient(token, repoSlug string, opts ...APIClientOption) (*APIClient, error) {
	if token == "" {
		return nil, armyerrors.NewTrackerError("NewAPIClient", "token is required")
	}

	owner, repo, err := parseRepoSlug(repoSlug)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	client := &APIClient{
		client: gh.NewClient(tc),
		owner:  owner,
		repo:   repo,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// IsAuthenticated checks whether the token can reach the API.
func (c *APIClient) IsAuthenticated(ctx context.Context) bool {
	_, _, err := c.client.Users.Get(ctx, "")
	return err == nil
}

// ListOpenItems returns open work items carrying the given label. Pull
// requests surfaced by the issues endpoint are filtered out.
func (c *APIClient) ListOpenItems(ctx context.Context, label string) ([]WorkItem, error) {
	c.logDebug("listing items", "label", label)

	ghOpts := &gh.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if label != "" {
		ghOpts.Labels = []string{label}
	}

	var items []WorkItem
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, ghOpts)
		if err != nil {
			return nil, toTrackerError("ListOpenItems", resp, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			items = append(items, itemFromIssue(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		ghOpts.Page = resp.NextPage
	}

	return items, nil
}

// GetItem fetches a single work item by number.
func (c *APIClient) GetItem(ctx context.Context, number int) (*WorkItem, error) {
	c.logDebug("getting item", "number", number)

	issue, resp, err := c.client.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, toTrackerError("GetItem", resp, err)
	}

	item := itemFromIssue(issue)
	return &item, nil
}

// CreateItem opens a new work item with its initial labels.
func (c *APIClient) CreateItem(ctx context.Context, item NewItem) (*WorkItem, error) {
	if item.Title == "" {
		return nil, armyerrors.NewTrackerError("CreateItem", "title is required")
	}

	c.logDebug("creating item", "title", item.Title, "labels", item.Labels)

	req := &gh.IssueRequest{
		Title: gh.Ptr(item.Title),
		Body:  gh.Ptr(item.Body),
	}
	if len(item.Labels) > 0 {
		req.Labels = &item.Labels
	}

	issue, resp, err := c.client.Issues.Create(ctx, c.owner, c.repo, req)
	if err != nil {
		return nil, toTrackerError("CreateItem", resp, err)
	}

	created := itemFromIssue(issue)
	return &created, nil
}

// AddLabels attaches labels to an item, preserving existing ones.
func (c *APIClient) AddLabels(ctx context.Context, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	c.logDebug("adding labels", "number", number, "labels", labels)

	_, resp, err := c.client.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, labels)
	if err != nil {
		return toTrackerError("AddLabels", resp, err)
	}
	return nil
}

// RemoveLabel detaches a single label. A 404 from the label endpoint means
// the item never carried the label, which is the desired end state.
func (c *APIClient) RemoveLabel(ctx context.Context, number int, label string) error {
	c.logDebug("removing label", "number", number, "label", label)

	resp, err := c.client.Issues.RemoveLabelForIssue(ctx, c.owner, c.repo, number, label)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil
		}
		return toTrackerError("RemoveLabel", resp, err)
	}
	return nil
}

// Comment posts a comment on a work item.
func (c *APIClient) Comment(ctx context.Context, number int, body string) error {
	if body == "" {
		return nil
	}

	c.logDebug("commenting", "number", number)

	comment := &gh.IssueComment{Body: gh.Ptr(body)}
	_, resp, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, comment)
	if err != nil {
		return toTrackerError("Comment", resp, err)
	}
	return nil
}

// ListOpenPullRequests returns open, non-draft pull requests.
func (c *APIClient) ListOpenPullRequests(ctx context.Context) ([]PullRequest, error) {
	c.logDebug("listing pull requests")

	ghOpts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var prs []PullRequest
	for {
		page, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, ghOpts)
		if err != nil {
			return nil, toTrackerError("ListOpenPullRequests", resp, err)
		}
		for _, pr := range page {
			if pr.GetDraft() {
				continue
			}
			prs = append(prs, prFromGitHub(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		ghOpts.Page = resp.NextPage
	}

	return prs, nil
}

// MergePullRequest merges a pull request with the squash method.
func (c *APIClient) MergePullRequest(ctx context.Context, number int) error {
	c.logDebug("merging pull request", "number", number)

	mergeOpts := &gh.PullRequestOptions{MergeMethod: "squash"}
	_, resp, err := c.client.PullRequests.Merge(ctx, c.owner, c.repo, number, "", mergeOpts)
	if err != nil {
		return toTrackerError("MergePullRequest", resp, err)
	}
	return nil
}

// RateLimit queries the core API budget. This endpoint is exempt from the
// budget it reports.
func (c *APIClient) RateLimit(ctx context.Context) (RateSnapshot, error) {
	limits, resp, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return RateSnapshot{}, toTrackerError("RateLimit", resp, err)
	}

	core := limits.GetCore()
	if core == nil {
		return RateSnapshot{}, armyerrors.NewTrackerError("RateLimit", "response missing core limits")
	}

	return RateSnapshot{
		Remaining: core.Remaining,
		Limit:     core.Limit,
		Reset:     core.Reset.Time,
	}, nil
}

func (c *APIClient) logDebug(msg string, args ...any) {
	if c.verbose {
		c.logger.Debug(msg, args...)
	}
}

// Helper functions

func itemFromIssue(issue *gh.Issue) WorkItem {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	return WorkItem{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		Labels:    labels,
		Closed:    issue.GetState() == "closed",
		URL:       issue.GetHTMLURL(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
}

func prFromGitHub(pr *gh.PullRequest) PullRequest {
	out := PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		Draft:     pr.GetDraft(),
		URL:       pr.GetHTMLURL(),
		Author:    pr.GetUser().GetLogin(),
		CreatedAt: pr.GetCreatedAt().Time,
	}
	if pr.Head != nil {
		out.HeadBranch = pr.GetHead().GetRef()
	}
	if pr.Mergeable != nil {
		out.Mergeable = *pr.Mergeable
	}
	return out
}

func toTrackerError(operation string, resp *gh.Response, err error) error {
	if resp != nil && resp.StatusCode > 0 {
		return armyerrors.NewTrackerErrorWithStatus(operation, resp.StatusCode, err.Error())
	}
	return armyerrors.NewTrackerErrorWithCause(operation, "API request failed", err)
}

func parseRepoSlug(slug string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(slug), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", armyerrors.NewTrackerError("parseRepoSlug", "repository must be in owner/repo form")
	}
	return parts[0], parts[1], nil
}

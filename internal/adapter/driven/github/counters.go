package github

import (
	"context"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/looplabs/loopgate/internal/domain/model"
)

// countPage fetches one page of contributions and returns how many items on
// it match, plus the next page number (0 when exhausted).
type countPage func(ctx context.Context, page int) (matched int, nextPage int, err error)

// countBounded walks a lazy page sequence, accumulating matches until the
// running count reaches limit, then stops. Worst-case API cost is therefore
// proportional to the threshold, not to the user's total history. If the
// pages are exhausted first, the true observed total (< limit) is returned.
func countBounded(ctx context.Context, limit int, fetch countPage) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	total := 0
	page := 0
	for {
		matched, nextPage, err := fetch(ctx, page)
		if err != nil {
			return 0, err
		}

		total += matched
		if total >= limit {
			return limit, nil
		}
		if nextPage == 0 {
			return total, nil
		}
		page = nextPage
	}
}

// pageSize returns the per-page size for a bounded count. There is no point
// requesting more items than the cap when the cap is small.
func pageSize(limit int) int {
	if limit < 100 {
		return limit
	}
	return 100
}

// CountMergedPullRequests counts merged pull requests authored by username,
// paginating through closed PRs newest-first and stopping at cap. The list
// endpoint has no author filter, so author matching happens client-side.
func (c *Client) CountMergedPullRequests(ctx context.Context, coords model.RepositoryCoordinates, username string, cap int) (int, error) {
	opts := &gh.PullRequestListOptions{
		State:     "closed",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	count, err := countBounded(ctx, cap, func(ctx context.Context, page int) (int, int, error) {
		opts.Page = page
		prs, resp, err := c.gh.PullRequests.List(ctx, coords.Owner, coords.Name, opts)
		if err != nil {
			return 0, 0, fmt.Errorf("listing pull requests for %s (page %d): %w", coords.FullName(), page, err)
		}

		logRateLimit(resp, coords.FullName()+"/pulls", page, len(prs))

		matched := 0
		for _, pr := range prs {
			if pr.GetUser().GetLogin() == username && !pr.GetMergedAt().IsZero() {
				matched++
			}
		}
		return matched, resp.NextPage, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountCommits counts commits authored by username on the repository's
// default branch, stopping at cap. The commits endpoint filters by author
// server-side, so every returned item counts.
func (c *Client) CountCommits(ctx context.Context, coords model.RepositoryCoordinates, username string, cap int) (int, error) {
	opts := &gh.CommitsListOptions{
		Author: username,
		ListOptions: gh.ListOptions{
			PerPage: pageSize(cap),
		},
	}

	count, err := countBounded(ctx, cap, func(ctx context.Context, page int) (int, int, error) {
		opts.Page = page
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, coords.Owner, coords.Name, opts)
		if err != nil {
			// An empty repository answers 409; that is zero commits, not a failure.
			if resp != nil && resp.StatusCode == http.StatusConflict {
				return 0, 0, nil
			}
			return 0, 0, fmt.Errorf("listing commits for %s (page %d): %w", coords.FullName(), page, err)
		}

		logRateLimit(resp, coords.FullName()+"/commits", page, len(commits))

		return len(commits), resp.NextPage, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountIssuesCreated counts issues created by username, stopping at cap.
// The issues endpoint filters by creator server-side but also returns pull
// requests, which are skipped client-side.
func (c *Client) CountIssuesCreated(ctx context.Context, coords model.RepositoryCoordinates, username string, cap int) (int, error) {
	opts := &gh.IssueListByRepoOptions{
		Creator: username,
		State:   "all",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	count, err := countBounded(ctx, cap, func(ctx context.Context, page int) (int, int, error) {
		opts.ListOptions.Page = page
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, coords.Owner, coords.Name, opts)
		if err != nil {
			return 0, 0, fmt.Errorf("listing issues for %s (page %d): %w", coords.FullName(), page, err)
		}

		logRateLimit(resp, coords.FullName()+"/issues", page, len(issues))

		matched := 0
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			matched++
		}
		return matched, resp.NextPage, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

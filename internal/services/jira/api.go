package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/models"
)

const (
	searchPageSize = 100

	// maxSearchPages bounds the pagination loop against a server that
	// never reports isLast.
	maxSearchPages = 200
)

// Search runs a JQL query and returns every matching issue, following the
// server's pagination.
func (c *Client) Search(ctx context.Context, jql string) ([]models.Issue, error) {
	var issues []models.Issue

	startAt := 0
	for page := 0; page < maxSearchPages; page++ {
		path := fmt.Sprintf("/rest/api/2/search?jql=%s&startAt=%d&maxResults=%d",
			url.QueryEscape(jql), startAt, searchPageSize)

		var result models.SearchResult
		if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
			return nil, err
		}

		issues = append(issues, result.Issues...)

		if len(result.Issues) < searchPageSize || len(issues) >= result.Total {
			break
		}
		startAt += searchPageSize
	}

	if c.logger != nil {
		c.logger.Debug().Str("jql", jql).Int("count", len(issues)).Msg("Search complete")
	}
	return issues, nil
}

// GetIssue fetches a fresh snapshot of one issue.
func (c *Client) GetIssue(ctx context.Context, key string) (*models.Issue, error) {
	var issue models.Issue
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key), nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetIssueRendered fetches an issue with the server-rendered HTML variants
// of its text fields, used for terminal display of the description.
func (c *Client) GetIssueRendered(ctx context.Context, key string) (*models.Issue, error) {
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "?expand=renderedFields"
	var issue models.Issue
	if err := c.do(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// CreateIssue creates an issue from a field payload built by FieldBuilder.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (*models.CreatedIssue, error) {
	var created models.CreatedIssue
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", fields, &created); err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Info().Str("key", created.Key).Msg("Issue created")
	}
	return &created, nil
}

// UpdateIssue applies a sparse field payload to an issue. Fields absent from
// the payload are left untouched server-side.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), fields, nil)
}

// AssignIssue sets the issue assignee. An empty username unassigns.
func (c *Client) AssignIssue(ctx context.Context, key, username string) error {
	payload := map[string]any{"name": username}
	if username == "" {
		payload["name"] = nil
	}
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key)+"/assignee", payload, nil)
}

// TransitionIssue moves an issue through the workflow transition with the
// given server id.
func (c *Client) TransitionIssue(ctx context.Context, key, transitionID string) error {
	payload := map[string]any{
		"transition": map[string]string{"id": transitionID},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/transitions", payload, nil)
}

// DeleteIssue permanently deletes an issue.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/2/issue/"+url.PathEscape(key), nil, nil)
}

// AddWorklog records time spent against an issue. timeSpent uses the
// tracker's duration grammar ("2h 30m").
func (c *Client) AddWorklog(ctx context.Context, key string, started time.Time, timeSpent, comment string) error {
	payload := map[string]any{
		"timeSpent": timeSpent,
		"comment":   comment,
	}
	if !started.IsZero() {
		payload["started"] = common.FormatIssueTime(started)
	}
	return c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/worklog", payload, nil)
}

// Worklogs lists every worklog entry on an issue.
func (c *Client) Worklogs(ctx context.Context, key string) ([]models.Worklog, error) {
	var result models.WorklogList
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key)+"/worklog", nil, &result); err != nil {
		return nil, err
	}
	for i := range result.Worklogs {
		result.Worklogs[i].IssueKey = key
	}
	return result.Worklogs, nil
}

// DeleteWorklog removes one worklog entry from an issue.
func (c *Client) DeleteWorklog(ctx context.Context, key, worklogID string) error {
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "/worklog/" + url.PathEscape(worklogID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Boards lists agile boards, optionally filtered by name, following the
// server's pagination.
func (c *Client) Boards(ctx context.Context, name string) ([]models.Board, error) {
	var boards []models.Board

	startAt := 0
	for page := 0; page < maxSearchPages; page++ {
		path := fmt.Sprintf("/rest/agile/1.0/board?startAt=%d&maxResults=%d", startAt, searchPageSize)
		if name != "" {
			path += "&name=" + url.QueryEscape(name)
		}

		var result models.BoardList
		if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
			return nil, err
		}

		boards = append(boards, result.Values...)

		if result.IsLast || len(result.Values) == 0 {
			break
		}
		startAt += len(result.Values)
	}

	return boards, nil
}

// Projects lists every project visible to the authenticated user.
func (c *Client) Projects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Sprints lists a board's sprints, optionally filtered by state
// ("active", "future", "closed").
func (c *Client) Sprints(ctx context.Context, boardID int, state string) ([]models.Sprint, error) {
	var sprints []models.Sprint

	startAt := 0
	for page := 0; page < maxSearchPages; page++ {
		path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint?startAt=%d&maxResults=%d", boardID, startAt, searchPageSize)
		if state != "" {
			path += "&state=" + url.QueryEscape(state)
		}

		var result models.SprintList
		if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
			return nil, err
		}

		sprints = append(sprints, result.Values...)

		if result.IsLast || len(result.Values) == 0 {
			break
		}
		startAt += len(result.Values)
	}

	return sprints, nil
}

// AddIssuesToSprint moves issues into the given sprint.
func (c *Client) AddIssuesToSprint(ctx context.Context, sprintID int, keys []string) error {
	payload := map[string]any{"issues": keys}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rest/agile/1.0/sprint/%d/issue", sprintID), payload, nil)
}

// MoveToBacklog moves issues out of their sprint into the backlog.
func (c *Client) MoveToBacklog(ctx context.Context, keys []string) error {
	payload := map[string]any{"issues": keys}
	return c.do(ctx, http.MethodPost, "/rest/agile/1.0/backlog/issue", payload, nil)
}

// Components lists a project's components.
func (c *Client) Components(ctx context.Context, projectKey string) ([]models.Component, error) {
	var components []models.Component
	path := "/rest/api/2/project/" + url.PathEscape(projectKey) + "/components"
	if err := c.do(ctx, http.MethodGet, path, nil, &components); err != nil {
		return nil, err
	}
	return components, nil
}

// Statuses lists the server's global workflow statuses.
func (c *Client) Statuses(ctx context.Context) ([]models.Status, error) {
	var statuses []models.Status
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/status", nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Transitions lists the workflow transitions the issue can currently make.
// Transitions are issue- and workflow-state-dependent, so the result is
// never cached.
func (c *Client) Transitions(ctx context.Context, key string) ([]models.Transition, error) {
	var result models.TransitionList
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "/transitions"
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Transitions, nil
}

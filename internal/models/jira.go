package models

// User represents a Jira user identity
type User struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
	Active      bool   `json:"active"`
}

// Issue represents a Jira issue
type Issue struct {
	ID       string          `json:"id"`
	Key      string          `json:"key"`
	Self     string          `json:"self"`
	Fields   IssueFields     `json:"fields"`
	Rendered *RenderedFields `json:"renderedFields,omitempty"`
}

// IssueFields contains the fields of a Jira issue
type IssueFields struct {
	Summary              string        `json:"summary"`
	Description          string        `json:"description"`
	Status               *Status       `json:"status"`
	Assignee             *User         `json:"assignee"`
	Reporter             *User         `json:"reporter"`
	IssueType            *Named        `json:"issuetype"`
	Project              *Project      `json:"project"`
	Created              string        `json:"created"`
	Updated              string        `json:"updated"`
	Labels               []string      `json:"labels"`
	Components           []Component   `json:"components"`
	TimeTracking         *TimeTracking `json:"timetracking"`
	TimeSpentSeconds     int64         `json:"timespent"`
	TimeEstimateSeconds  int64         `json:"timeestimate"`
	OriginalEstimateSecs int64         `json:"timeoriginalestimate"`
}

// RenderedFields holds server-rendered HTML variants of issue fields,
// returned when the fetch expands "renderedFields"
type RenderedFields struct {
	Description string `json:"description"`
}

// TimeTracking holds the estimate fields of an issue. The string forms
// ("2h30m") are what the server accepts on update; the seconds forms are
// what it reports back.
type TimeTracking struct {
	OriginalEstimate         string `json:"originalEstimate,omitempty"`
	RemainingEstimate        string `json:"remainingEstimate,omitempty"`
	TimeSpent                string `json:"timeSpent,omitempty"`
	OriginalEstimateSeconds  int64  `json:"originalEstimateSeconds,omitempty"`
	RemainingEstimateSeconds int64  `json:"remainingEstimateSeconds,omitempty"`
	TimeSpentSeconds         int64  `json:"timeSpentSeconds,omitempty"`
}

// Status represents a workflow status
type Status struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Named is a generic id/name pair used by several issue fields
type Named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Component represents a project component
type Component struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project represents a Jira project
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Board represents an agile board
type Board struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// BoardList is the paged response from the agile board endpoint
type BoardList struct {
	MaxResults int     `json:"maxResults"`
	StartAt    int     `json:"startAt"`
	IsLast     bool    `json:"isLast"`
	Values     []Board `json:"values"`
}

// Sprint represents an agile sprint
type Sprint struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Goal  string `json:"goal,omitempty"`
}

// SprintList is the paged response from the board sprints endpoint
type SprintList struct {
	MaxResults int      `json:"maxResults"`
	StartAt    int      `json:"startAt"`
	IsLast     bool     `json:"isLast"`
	Values     []Sprint `json:"values"`
}

// Worklog represents a single work log entry on an issue
type Worklog struct {
	ID               string `json:"id"`
	IssueKey         string `json:"-"`
	Author           *User  `json:"author"`
	Comment          string `json:"comment"`
	Started          string `json:"started"`
	TimeSpent        string `json:"timeSpent"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
}

// WorklogList is the response from the issue worklog endpoint
type WorklogList struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []Worklog `json:"worklogs"`
}

// Transition represents an available workflow transition for an issue
type Transition struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	To   *Status `json:"to,omitempty"`
}

// TransitionList wraps the list returned by the issue transitions endpoint
type TransitionList struct {
	Transitions []Transition `json:"transitions"`
}

// SearchResult is the paged response from a JQL search
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// CreatedIssue is the response from issue creation
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// AvailableStatus is a transition the current issue can make, annotated for
// prompt selection. SelectionNumber is assigned after sorting by normalized
// name so the numbering does not depend on server-returned order.
type AvailableStatus struct {
	Name            string
	ID              string
	DisplayName     string
	SelectionNumber int
}

// BoardContext is the resolved identity of one configured board alias:
// server ids plus the current sprint, cached for the process lifetime.
type BoardContext struct {
	Alias             string
	BoardID           int
	BoardName         string
	ProjectID         string
	ProjectKey        string
	CurrentSprintID   int
	CurrentSprintName string
}

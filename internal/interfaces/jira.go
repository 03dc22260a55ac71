package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/tabula/internal/models"
)

// JiraService is the authenticated tracker API the shells and the resolver
// talk to. Field payloads for create/update are the maps produced by the
// jira package's FieldBuilder.
type JiraService interface {
	// Connect establishes the session and verifies credentials.
	Connect(ctx context.Context) error
	// Me returns the authenticated user, cached after the first call.
	Me(ctx context.Context) (*models.User, error)
	// CurrentUsername returns the cached login name, empty before Connect.
	CurrentUsername() string

	Search(ctx context.Context, jql string) ([]models.Issue, error)
	GetIssue(ctx context.Context, key string) (*models.Issue, error)
	GetIssueRendered(ctx context.Context, key string) (*models.Issue, error)
	CreateIssue(ctx context.Context, fields map[string]any) (*models.CreatedIssue, error)
	UpdateIssue(ctx context.Context, key string, fields map[string]any) error
	AssignIssue(ctx context.Context, key, username string) error
	TransitionIssue(ctx context.Context, key, transitionID string) error
	DeleteIssue(ctx context.Context, key string) error

	AddWorklog(ctx context.Context, key string, started time.Time, timeSpent, comment string) error
	Worklogs(ctx context.Context, key string) ([]models.Worklog, error)
	DeleteWorklog(ctx context.Context, key, worklogID string) error

	Boards(ctx context.Context, name string) ([]models.Board, error)
	Projects(ctx context.Context) ([]models.Project, error)
	Sprints(ctx context.Context, boardID int, state string) ([]models.Sprint, error)
	AddIssuesToSprint(ctx context.Context, sprintID int, keys []string) error
	MoveToBacklog(ctx context.Context, keys []string) error

	Components(ctx context.Context, projectKey string) ([]models.Component, error)
	Statuses(ctx context.Context) ([]models.Status, error)
	Transitions(ctx context.Context, key string) ([]models.Transition, error)
}

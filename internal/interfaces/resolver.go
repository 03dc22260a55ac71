package interfaces

import (
	"context"

	"github.com/ternarybob/tabula/internal/models"
)

// ListOptions narrows an issue listing built by BoardResolver.ListJQL.
type ListOptions struct {
	Assignee string // empty means the connected user, "all" lifts the filter
	Sprint   string // sprint name fragment, "backlog", or empty for the current sprint
	Status   string // status name filter
	Text     string // free-text match against summary, description and comments
}

// BoardResolver turns configured board names and user-entered fragments into
// server identities. Lookups hit the server once and are cached until Reload.
type BoardResolver interface {
	// Context resolves the configured board alias to its server ids.
	Context(ctx context.Context) (*models.BoardContext, error)
	// Reload discards every cached lookup so the next call re-fetches.
	Reload(ctx context.Context) error

	// CurrentSprint returns the active sprint with the highest id.
	CurrentSprint(ctx context.Context) (*models.Sprint, error)
	// ResolveSprint matches a name fragment against the board's sprints.
	ResolveSprint(ctx context.Context, name string) (*models.Sprint, error)
	// ResolveComponent matches a name fragment against the project's components.
	ResolveComponent(ctx context.Context, text string) (*models.Component, error)
	// Components lists the project's components.
	Components(ctx context.Context) ([]models.Component, error)
	// ResolveStatusName finds the canonical spelling for a status the user
	// typed; empty with no error when nothing matches.
	ResolveStatusName(ctx context.Context, text string) (string, error)

	// AvailableStatuses lists the transitions an issue can make, filtered,
	// sorted and numbered for prompt selection.
	AvailableStatuses(ctx context.Context, issueKey string) ([]models.AvailableStatus, error)
	// ResolveStatusID picks a transition id from a name or a 1-based number.
	ResolveStatusID(statuses []models.AvailableStatus, selection string) (string, error)

	// CheckLabels validates labels against the component's allowed set when
	// label checking is enabled.
	CheckLabels(component string, labels []string) error
	// ComponentLabels returns the configured allowed labels for a component,
	// used to drive interactive pickers.
	ComponentLabels(component string) []string

	// ListJQL builds the query for an issue listing.
	ListJQL(ctx context.Context, opts ListOptions) (string, error)
	// ZeroSweepJQL builds the query finding done issues with time remaining.
	ZeroSweepJQL(ctx context.Context) (string, error)
}

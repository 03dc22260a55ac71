package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/interfaces"
	"github.com/ternarybob/tabula/internal/models"
)

// fakeJira is an in-memory stand-in for the tracker API.
type fakeJira struct {
	boards      []models.Board
	projects    []models.Project
	sprints     map[string][]models.Sprint // keyed by state filter
	components  []models.Component
	statuses    []models.Status
	transitions []models.Transition

	sprintCalls int
}

func (f *fakeJira) Connect(ctx context.Context) error { return nil }
func (f *fakeJira) Me(ctx context.Context) (*models.User, error) {
	return &models.User{Name: "jdoe"}, nil
}
func (f *fakeJira) CurrentUsername() string { return "jdoe" }
func (f *fakeJira) Search(ctx context.Context, jql string) ([]models.Issue, error) {
	return nil, nil
}
func (f *fakeJira) GetIssue(ctx context.Context, key string) (*models.Issue, error) {
	return nil, nil
}
func (f *fakeJira) GetIssueRendered(ctx context.Context, key string) (*models.Issue, error) {
	return nil, nil
}
func (f *fakeJira) CreateIssue(ctx context.Context, fields map[string]any) (*models.CreatedIssue, error) {
	return &models.CreatedIssue{Key: "PROJ-1"}, nil
}
func (f *fakeJira) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	return nil
}
func (f *fakeJira) AssignIssue(ctx context.Context, key, username string) error { return nil }
func (f *fakeJira) TransitionIssue(ctx context.Context, key, transitionID string) error {
	return nil
}
func (f *fakeJira) DeleteIssue(ctx context.Context, key string) error { return nil }
func (f *fakeJira) AddWorklog(ctx context.Context, key string, started time.Time, timeSpent, comment string) error {
	return nil
}
func (f *fakeJira) Worklogs(ctx context.Context, key string) ([]models.Worklog, error) {
	return nil, nil
}
func (f *fakeJira) DeleteWorklog(ctx context.Context, key, worklogID string) error { return nil }
func (f *fakeJira) Boards(ctx context.Context, name string) ([]models.Board, error) {
	return f.boards, nil
}
func (f *fakeJira) Projects(ctx context.Context) ([]models.Project, error) {
	return f.projects, nil
}
func (f *fakeJira) Sprints(ctx context.Context, boardID int, state string) ([]models.Sprint, error) {
	f.sprintCalls++
	return f.sprints[state], nil
}
func (f *fakeJira) AddIssuesToSprint(ctx context.Context, sprintID int, keys []string) error {
	return nil
}
func (f *fakeJira) MoveToBacklog(ctx context.Context, keys []string) error { return nil }
func (f *fakeJira) Components(ctx context.Context, projectKey string) ([]models.Component, error) {
	return f.components, nil
}
func (f *fakeJira) Statuses(ctx context.Context) ([]models.Status, error) {
	return f.statuses, nil
}
func (f *fakeJira) Transitions(ctx context.Context, key string) ([]models.Transition, error) {
	return f.transitions, nil
}

func newFakeJira() *fakeJira {
	return &fakeJira{
		boards:   []models.Board{{ID: 7, Name: "Team Board", Type: "scrum"}},
		projects: []models.Project{{ID: "10001", Key: "PROJ", Name: "My Project"}},
		sprints: map[string][]models.Sprint{
			"active": {{ID: 42, Name: "Sprint 42", State: "active"}},
			"": {
				{ID: 5, Name: "Sprint 5", State: "closed"},
				{ID: 50, Name: "Sprint 50", State: "closed"},
				{ID: 42, Name: "Sprint 42", State: "active"},
			},
		},
		components: []models.Component{
			{ID: "100", Name: "Backend"},
			{ID: "101", Name: "Backend API"},
			{ID: "102", Name: "Docs"},
		},
		statuses: []models.Status{
			{ID: "1", Name: "To Do"},
			{ID: "2", Name: "In Progress"},
			{ID: "3", Name: "Done"},
		},
	}
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	config := common.NewDefaultConfig()
	config.Server.URL = "https://jira.example.com"
	config.Server.Username = "jdoe"
	config.Boards = []common.BoardConfig{{Alias: "main", Board: "Team Board", Project: "PROJ"}}
	return config
}

func newTestService(t *testing.T, jira *fakeJira, config *common.Config) *Service {
	t.Helper()
	if config == nil {
		config = testConfig(t)
	}
	return NewService(jira, config.Boards[0], config, arbor.NewLogger())
}

func TestContextResolvesAndCaches(t *testing.T) {
	jira := newFakeJira()
	service := newTestService(t, jira, nil)

	boardCtx, err := service.Context(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, boardCtx.BoardID)
	assert.Equal(t, "PROJ", boardCtx.ProjectKey)
	assert.Equal(t, 42, boardCtx.CurrentSprintID)
	assert.Equal(t, "Sprint 42", boardCtx.CurrentSprintName)

	calls := jira.sprintCalls
	_, err = service.Context(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calls, jira.sprintCalls, "second lookup served from cache")

	require.NoError(t, service.Reload(context.Background()))
	assert.Greater(t, jira.sprintCalls, calls, "reload re-fetches")
}

func TestContextUnknownBoard(t *testing.T) {
	config := testConfig(t)
	config.Boards[0].Board = "No Such Board"
	service := newTestService(t, newFakeJira(), config)

	_, err := service.Context(context.Background())
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "board", notFound.Kind)
}

func TestCurrentSprintPicksHighestActive(t *testing.T) {
	jira := newFakeJira()
	jira.sprints["active"] = []models.Sprint{
		{ID: 41, Name: "Sprint 41", State: "active"},
		{ID: 43, Name: "Sprint 43", State: "active"},
		{ID: 42, Name: "Sprint 42", State: "active"},
	}
	service := newTestService(t, jira, nil)

	sprint, err := service.CurrentSprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 43, sprint.ID)
}

func TestCurrentSprintNoneActive(t *testing.T) {
	jira := newFakeJira()
	jira.sprints["active"] = nil
	service := newTestService(t, jira, nil)

	_, err := service.CurrentSprint(context.Background())
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "sprint", notFound.Kind)
}

func TestResolveSprint(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantID  int
		wantErr bool
	}{
		{"numeric token matches standalone number", "5", 5, false},
		{"numeric token does not match inside 50", "50", 50, false},
		{"substring match", "sprint 4", 42, false},
		{"case-insensitive substring", "SPRINT 42", 42, false},
		{"no match", "holidays", 0, true},
		{"numeric with no token match", "9", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(t, newFakeJira(), nil)
			sprint, err := service.ResolveSprint(context.Background(), tt.text)
			if tt.wantErr {
				var notFound *NotFoundError
				require.ErrorAs(t, err, &notFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, sprint.ID)
		})
	}
}

func TestResolveSprintFiveNeverMatchesFifty(t *testing.T) {
	jira := newFakeJira()
	jira.sprints[""] = []models.Sprint{{ID: 50, Name: "Sprint 50", State: "closed"}}
	service := newTestService(t, jira, nil)

	_, err := service.ResolveSprint(context.Background(), "5")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResolveComponent(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"exact name beats substring", "backend", "Backend", false},
		{"exact id", "101", "Backend API", false},
		{"substring fallback", "api", "Backend API", false},
		{"case-insensitive", "DOCS", "Docs", false},
		{"no match", "frontend", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(t, newFakeJira(), nil)
			component, err := service.ResolveComponent(context.Background(), tt.text)
			if tt.wantErr {
				var notFound *NotFoundError
				require.ErrorAs(t, err, &notFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, component.Name)
		})
	}
}

func TestResolveStatusNameNormalizes(t *testing.T) {
	service := newTestService(t, newFakeJira(), nil)

	for _, input := range []string{"In Progress", "in progress", "INPROGRESS", " i n p r o g r e s s "} {
		name, err := service.ResolveStatusName(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, "In Progress", name, "input %q", input)
	}

	name, err := service.ResolveStatusName(context.Background(), "blocked")
	require.NoError(t, err)
	assert.Empty(t, name, "no match is not an error")
}

func TestAvailableStatusesSortedAndNumbered(t *testing.T) {
	jira := newFakeJira()
	// Server-returned order is deliberately scrambled.
	jira.transitions = []models.Transition{
		{ID: "31", Name: "Done"},
		{ID: "21", Name: "In Progress"},
		{ID: "11", Name: "Backlog"},
	}
	service := newTestService(t, jira, nil)

	statuses, err := service.AvailableStatuses(context.Background(), "PROJ-1")
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, "backlog", statuses[0].Name)
	assert.Equal(t, "done", statuses[1].Name)
	assert.Equal(t, "inprogress", statuses[2].Name)
	for i, status := range statuses {
		assert.Equal(t, i+1, status.SelectionNumber)
	}
}

func TestAvailableStatusesExcludesMarkedTransitions(t *testing.T) {
	jira := newFakeJira()
	jira.transitions = []models.Transition{
		{ID: "31", Name: "Done"},
		{ID: "41", Name: "Done (Parallel Team)"},
	}
	service := newTestService(t, jira, nil)

	statuses, err := service.AvailableStatuses(context.Background(), "PROJ-1")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "Done", statuses[0].DisplayName)
}

func TestResolveStatusID(t *testing.T) {
	statuses := []models.AvailableStatus{
		{Name: "backlog", ID: "11", DisplayName: "Backlog", SelectionNumber: 1},
		{Name: "done", ID: "31", DisplayName: "Done", SelectionNumber: 2},
		{Name: "inprogress", ID: "21", DisplayName: "In Progress", SelectionNumber: 3},
	}
	service := newTestService(t, newFakeJira(), nil)

	tests := []struct {
		name      string
		selection string
		wantID    string
		wantErr   bool
	}{
		{"normalized name", "in progress", "21", false},
		{"compact name", "inprogress", "21", false},
		{"selection number", "2", "31", false},
		{"unknown name", "blocked", "", true},
		{"out-of-range number", "9", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := service.ResolveStatusID(statuses, tt.selection)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func writeLabelsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheckLabels(t *testing.T) {
	config := testConfig(t)
	config.Labels.Check = true
	config.Labels.File = writeLabelsFile(t, "backend:\n  - bug\n  - urgent\n")
	service := newTestService(t, newFakeJira(), config)

	assert.NoError(t, service.CheckLabels("backend", []string{"urgent"}))
	assert.NoError(t, service.CheckLabels("Backend", []string{"BUG", "urgent"}))
	assert.NoError(t, service.CheckLabels("unmapped-component", []string{"anything"}))
	assert.NoError(t, service.CheckLabels("backend", nil))
}

func TestCheckLabelsRejectsUnknownLabel(t *testing.T) {
	config := testConfig(t)
	config.Labels.Check = true
	config.Labels.File = writeLabelsFile(t, "backend:\n  - bug\n")
	service := newTestService(t, newFakeJira(), config)

	err := service.CheckLabels("backend", []string{"urgent"})
	var invalid *InvalidLabelError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "backend", invalid.Component)
	assert.Equal(t, "urgent", invalid.Label)
}

func TestCheckLabelsDisabledFlag(t *testing.T) {
	config := testConfig(t)
	config.Labels.Check = false
	config.Labels.File = writeLabelsFile(t, "backend:\n  - bug\n")
	service := newTestService(t, newFakeJira(), config)

	assert.NoError(t, service.CheckLabels("backend", []string{"urgent"}))
}

func TestListJQL(t *testing.T) {
	tests := []struct {
		name     string
		opts     interfaces.ListOptions
		contains []string
		excludes []string
	}{
		{
			name:     "defaults to current sprint and current user",
			opts:     interfaces.ListOptions{},
			contains: []string{"sprint = 42", "assignee = currentUser()"},
		},
		{
			name:     "explicit assignee",
			opts:     interfaces.ListOptions{Assignee: "mallory"},
			contains: []string{"assignee = mallory"},
		},
		{
			name:     "all lifts the assignee filter",
			opts:     interfaces.ListOptions{Assignee: "all"},
			excludes: []string{"assignee"},
		},
		{
			name: "backlog changes the query shape",
			opts: interfaces.ListOptions{Sprint: "backlog"},
			contains: []string{
				"project = PROJ",
				"Sprint = EMPTY OR Sprint not in (openSprints(), futureSprints())",
			},
			excludes: []string{"sprint = 42"},
		},
		{
			name:     "named sprint",
			opts:     interfaces.ListOptions{Sprint: "5"},
			contains: []string{"sprint = 5"},
		},
		{
			name:     "status filter uses the canonical name",
			opts:     interfaces.ListOptions{Status: "inprogress"},
			contains: []string{`status in ("In Progress")`},
		},
		{
			name:     "free text searches summary, description and comments",
			opts:     interfaces.ListOptions{Text: "flux capacitor"},
			contains: []string{`summary ~ "flux capacitor"`, `description ~ "flux capacitor"`, `comment ~ "flux capacitor"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(t, newFakeJira(), nil)
			jql, err := service.ListJQL(context.Background(), tt.opts)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, jql, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, jql, unwanted)
			}
		})
	}
}

func TestListJQLUnknownStatus(t *testing.T) {
	service := newTestService(t, newFakeJira(), nil)
	_, err := service.ListJQL(context.Background(), interfaces.ListOptions{Status: "blocked"})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "status", notFound.Kind)
}

func TestZeroSweepJQL(t *testing.T) {
	service := newTestService(t, newFakeJira(), nil)
	jql, err := service.ZeroSweepJQL(context.Background())
	require.NoError(t, err)
	assert.Equal(t,
		`sprint = 42 AND assignee = currentUser() AND status = "Done" AND remainingEstimate > 0`,
		jql)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"In Progress", "inprogress"},
		{"INPROGRESS", "inprogress"},
		{"  To\tDo ", "todo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := error(&NotFoundError{Kind: "sprint", Text: "holidays"})
	assert.Equal(t, "no sprint found matching 'holidays'", err.Error())
	assert.False(t, errors.Is(err, context.Canceled))
}

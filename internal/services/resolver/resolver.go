// Package resolver turns configured board aliases and user-entered fragments
// (sprint names, component names, status names or selection numbers) into
// server-side identities, and builds the JQL queries the listings run on.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/interfaces"
	"github.com/ternarybob/tabula/internal/models"
)

// Service resolves identities for one configured board alias. Board and
// project lookups hit the server once and are cached for the process
// lifetime; Reload is the only invalidation point.
type Service struct {
	jira          interfaces.JiraService
	board         common.BoardConfig
	excludeMarker string
	labelCheck    bool
	labelsPath    string
	logger        arbor.ILogger

	// Lazy-initialized, guarded by presence checks. The tool is
	// single-threaded so no locking is needed here.
	boardCtx *models.BoardContext
	labels   map[string][]string
}

// NewService creates a resolver for one configured board alias.
func NewService(jiraService interfaces.JiraService, board common.BoardConfig, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		jira:          jiraService,
		board:         board,
		excludeMarker: config.Transitions.ExcludeMarker,
		labelCheck:    config.Labels.Check,
		labelsPath:    config.LabelsFilePath(),
		logger:        logger,
	}
}

// NormalizeName strips all whitespace and lowercases, so "In Progress",
// "in progress" and "INPROGRESS" all normalize to "inprogress".
func NormalizeName(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Context resolves the configured board alias to its server ids, including
// the currently active sprint. The result is cached until Reload.
func (s *Service) Context(ctx context.Context) (*models.BoardContext, error) {
	if s.boardCtx != nil {
		return s.boardCtx, nil
	}

	board, err := s.resolveBoard(ctx)
	if err != nil {
		return nil, err
	}
	project, err := s.resolveProject(ctx)
	if err != nil {
		return nil, err
	}
	sprint, err := s.currentSprint(ctx, board.ID)
	if err != nil {
		return nil, err
	}

	s.boardCtx = &models.BoardContext{
		Alias:             s.board.Name(),
		BoardID:           board.ID,
		BoardName:         board.Name,
		ProjectID:         project.ID,
		ProjectKey:        project.Key,
		CurrentSprintID:   sprint.ID,
		CurrentSprintName: sprint.Name,
	}

	s.logger.Info().
		Str("board", board.Name).
		Int("board_id", board.ID).
		Str("project", project.Key).
		Str("sprint", sprint.Name).
		Msg("Board context resolved")

	return s.boardCtx, nil
}

// Reload discards every cached lookup and resolves the board context afresh.
func (s *Service) Reload(ctx context.Context) error {
	s.boardCtx = nil
	s.labels = nil
	_, err := s.Context(ctx)
	return err
}

func (s *Service) resolveBoard(ctx context.Context) (*models.Board, error) {
	boards, err := s.jira.Boards(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	want := strings.ToLower(s.board.Board)
	for i := range boards {
		if strings.ToLower(boards[i].Name) == want || fmt.Sprint(boards[i].ID) == want {
			return &boards[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "board", Text: s.board.Board}
}

func (s *Service) resolveProject(ctx context.Context) (*models.Project, error) {
	projects, err := s.jira.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	want := strings.ToLower(s.board.Project)
	for i := range projects {
		p := &projects[i]
		if strings.ToLower(p.Key) == want || strings.ToLower(p.Name) == want || p.ID == want {
			return p, nil
		}
	}
	return nil, &NotFoundError{Kind: "project", Text: s.board.Project}
}

// currentSprint fetches the board's active sprints. When several are active
// (should not normally happen) the highest id, the most recently created,
// wins.
func (s *Service) currentSprint(ctx context.Context, boardID int) (*models.Sprint, error) {
	sprints, err := s.jira.Sprints(ctx, boardID, "active")
	if err != nil {
		return nil, fmt.Errorf("failed to list active sprints: %w", err)
	}

	var current *models.Sprint
	for i := range sprints {
		if !strings.EqualFold(sprints[i].State, "active") {
			continue
		}
		if current == nil || sprints[i].ID > current.ID {
			current = &sprints[i]
		}
	}
	if current == nil {
		return nil, &NotFoundError{Kind: "sprint", Text: "active"}
	}
	return current, nil
}

// CurrentSprint returns the cached active sprint for the board.
func (s *Service) CurrentSprint(ctx context.Context) (*models.Sprint, error) {
	boardCtx, err := s.Context(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Sprint{
		ID:    boardCtx.CurrentSprintID,
		Name:  boardCtx.CurrentSprintName,
		State: "active",
	}, nil
}

// ResolveSprint matches user text against the board's sprints. Purely
// numeric text matches only a standalone numeric token in a sprint name, so
// "5" finds "Sprint 5" but never "Sprint 50". Anything else matches as a
// case-insensitive substring of the name.
func (s *Service) ResolveSprint(ctx context.Context, text string) (*models.Sprint, error) {
	boardCtx, err := s.Context(ctx)
	if err != nil {
		return nil, err
	}

	sprints, err := s.jira.Sprints(ctx, boardCtx.BoardID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}

	if isDigits(text) {
		for i := range sprints {
			for _, token := range strings.Fields(sprints[i].Name) {
				if isDigits(token) && token == text {
					return &sprints[i], nil
				}
			}
		}
		return nil, &NotFoundError{Kind: "sprint", Text: text}
	}

	lower := strings.ToLower(text)
	for i := range sprints {
		if strings.Contains(strings.ToLower(sprints[i].Name), lower) {
			return &sprints[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "sprint", Text: text}
}

// Components lists the project's components.
func (s *Service) Components(ctx context.Context) ([]models.Component, error) {
	boardCtx, err := s.Context(ctx)
	if err != nil {
		return nil, err
	}
	return s.jira.Components(ctx, boardCtx.ProjectKey)
}

// ResolveComponent matches user text against the project's components:
// exact case-insensitive name or id first, then case-insensitive substring.
func (s *Service) ResolveComponent(ctx context.Context, text string) (*models.Component, error) {
	components, err := s.Components(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	for i := range components {
		if strings.ToLower(components[i].Name) == lower || components[i].ID == text {
			return &components[i], nil
		}
	}
	for i := range components {
		if strings.Contains(strings.ToLower(components[i].Name), lower) {
			return &components[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "component", Text: text}
}

// ResolveStatusName finds the server's canonical spelling for a status the
// user typed, comparing normalized forms. An empty result with no error
// means no match; the caller decides how to handle that.
func (s *Service) ResolveStatusName(ctx context.Context, text string) (string, error) {
	statuses, err := s.jira.Statuses(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list statuses: %w", err)
	}

	normalized := NormalizeName(text)
	for _, status := range statuses {
		if NormalizeName(status.Name) == normalized {
			return status.Name, nil
		}
	}
	return "", nil
}

// AvailableStatuses lists the transitions the issue can currently make,
// minus any whose name contains the configured exclusion marker, sorted by
// normalized name. Selection numbers are assigned after sorting so the
// numbering never depends on server-returned order.
func (s *Service) AvailableStatuses(ctx context.Context, issueKey string) ([]models.AvailableStatus, error) {
	transitions, err := s.jira.Transitions(ctx, issueKey)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.AvailableStatus, 0, len(transitions))
	for _, t := range transitions {
		if s.excludeMarker != "" && strings.Contains(t.Name, s.excludeMarker) {
			continue
		}
		statuses = append(statuses, models.AvailableStatus{
			Name:        NormalizeName(t.Name),
			ID:          t.ID,
			DisplayName: t.Name,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	for i := range statuses {
		statuses[i].SelectionNumber = i + 1
	}

	return statuses, nil
}

// ResolveStatusID picks a transition id from a status name (compared
// normalized) or a 1-based selection number.
func (s *Service) ResolveStatusID(statuses []models.AvailableStatus, selection string) (string, error) {
	normalized := NormalizeName(selection)
	for _, status := range statuses {
		if normalized != "" && normalized == status.Name {
			return status.ID, nil
		}
		if isDigits(selection) && selection == fmt.Sprint(status.SelectionNumber) {
			return status.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "status", Text: selection}
}

// CheckLabels validates labels against the component's allowed set. Only
// enforced when label checking is enabled in the configuration; a component
// absent from the map rejects nothing.
func (s *Service) CheckLabels(component string, labels []string) error {
	if !s.labelCheck || component == "" || len(labels) == 0 {
		return nil
	}

	if err := s.ensureLabels(); err != nil {
		return err
	}

	allowed, ok := s.labels[strings.ToLower(component)]
	if !ok {
		return nil
	}

	for _, label := range labels {
		found := false
		for _, candidate := range allowed {
			if strings.ToLower(label) == candidate {
				found = true
				break
			}
		}
		if !found {
			return &InvalidLabelError{Component: component, Label: label}
		}
	}
	return nil
}

// ComponentLabels returns the configured allowed labels for a component,
// used to drive interactive pickers. Empty when the map has no entry.
func (s *Service) ComponentLabels(component string) []string {
	if err := s.ensureLabels(); err != nil {
		return nil
	}
	return s.labels[strings.ToLower(component)]
}

func (s *Service) ensureLabels() error {
	if s.labels != nil {
		return nil
	}
	loaded, err := common.LoadComponentLabels(s.labelsPath)
	if err != nil {
		return err
	}
	s.labels = map[string][]string{}
	for name, allowed := range loaded {
		lowered := make([]string, len(allowed))
		for i, label := range allowed {
			lowered[i] = strings.ToLower(label)
		}
		s.labels[strings.ToLower(name)] = lowered
	}
	return nil
}

// ListJQL builds the query for an issue listing. An empty sprint filter
// scopes to the current sprint; "backlog" changes the query shape entirely
// since the backlog is a pseudo-sprint with no id.
func (s *Service) ListJQL(ctx context.Context, opts interfaces.ListOptions) (string, error) {
	boardCtx, err := s.Context(ctx)
	if err != nil {
		return "", err
	}

	var query string
	switch {
	case opts.Sprint == "backlog":
		query = fmt.Sprintf(
			"project = %s AND issuetype != Epic AND resolution = Unresolved AND "+
				"status != Done AND "+
				"(Sprint = EMPTY OR Sprint not in (openSprints(), futureSprints()))",
			boardCtx.ProjectKey)
	case opts.Sprint != "":
		sprint, err := s.ResolveSprint(ctx, opts.Sprint)
		if err != nil {
			return "", err
		}
		query = fmt.Sprintf("sprint = %d", sprint.ID)
	default:
		query = fmt.Sprintf("sprint = %d", boardCtx.CurrentSprintID)
	}

	switch opts.Assignee {
	case "":
		query += " AND assignee = currentUser()"
	case "all":
		// No assignee clause.
	default:
		query += fmt.Sprintf(" AND assignee = %s", opts.Assignee)
	}

	if opts.Status != "" {
		name, err := s.ResolveStatusName(ctx, opts.Status)
		if err != nil {
			return "", err
		}
		if name == "" {
			return "", &NotFoundError{Kind: "status", Text: opts.Status}
		}
		query += fmt.Sprintf(` AND status in ("%s")`, name)
	}

	if opts.Text != "" {
		text := strings.ReplaceAll(opts.Text, `"`, `\"`)
		query += fmt.Sprintf(` AND (summary ~ "%s" OR description ~ "%s" OR comment ~ "%s")`, text, text, text)
	}

	return query, nil
}

// ZeroSweepJQL builds the query finding the user's done issues in the
// current sprint that still carry a remaining estimate.
func (s *Service) ZeroSweepJQL(ctx context.Context) (string, error) {
	boardCtx, err := s.Context(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`sprint = %d AND assignee = currentUser() AND status = "Done" AND remainingEstimate > 0`,
		boardCtx.CurrentSprintID), nil
}

package shell

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/ternarybob/tabula/internal/collections"
	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/interfaces"
	"github.com/ternarybob/tabula/internal/models"
	"github.com/ternarybob/tabula/internal/services/jira"
	"github.com/ternarybob/tabula/internal/services/resolver"
)

// issueListing is the issue collection the main prompt remembers between
// commands.
type issueListing = collections.Collection[models.Issue]

var issueTypes = []string{"Task", "Story", "Bug", "Epic"}

// Run starts the main prompt loop and blocks until the user quits.
func (s *Shell) Run(ctx context.Context) error {
	commands := s.mainCommands()

	boardCtx, err := s.resolver.Context(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve board: %w", err)
	}

	s.printf("\nBoard '%s', current sprint '%s'.\n", boardCtx.BoardName, boardCtx.CurrentSprintName)
	s.println("Commands you can use here:")
	s.println()
	s.printCommands(commands)
	s.println("\nUse 'quit' to exit, 'help' to see this list again.")

	for {
		line, err := s.readLine("tabula> ")
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.dispatch(ctx, commands, line); errors.Is(err, errQuit) {
			return nil
		}
	}
}

func (s *Shell) mainCommands() []command {
	return []command{
		{name: "ls", aliases: []string{"l"}, help: "list cards, filter with -u/-s/-S/-t", run: s.cmdList},
		{name: "card", aliases: []string{"c"}, help: "open a card by table number or key", run: s.cmdCard},
		{name: "new", aliases: []string{"n"}, help: "create a new card", run: s.cmdNew},
		{name: "todayswork", aliases: []string{"tw"}, help: "work logged today across the last listing", run: s.cmdTodaysWork},
		{name: "yesterdayswork", aliases: []string{"yw"}, help: "work logged yesterday across the last listing", run: s.cmdYesterdaysWork},
		{name: "zero", aliases: []string{"z"}, help: "zero time left on your done cards", run: s.cmdZeroSweep},
		{name: "reload", aliases: []string{"r"}, help: "discard cached board lookups", run: s.cmdReload},
		{name: "help", aliases: []string{"h"}, help: "show this command list", run: s.cmdHelp},
		{name: "quit", aliases: []string{"q"}, help: "exit", run: s.cmdQuit},
	}
}

func (s *Shell) cmdList(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	flags.SetOutput(s.out)
	user := flags.String("u", "", "assignee, or 'all' (default: you)")
	sprint := flags.String("s", "", "sprint name, number, or 'backlog' (default: current)")
	status := flags.String("S", "", "status name, e.g. 'inprogress'")
	text := flags.String("t", "", "free text against summary/description/comments")
	if err := flags.Parse(args); err != nil {
		return nil
	}

	jql, err := s.resolver.ListJQL(ctx, interfaces.ListOptions{
		Assignee: *user,
		Sprint:   *sprint,
		Status:   *status,
		Text:     *text,
	})
	if err != nil {
		return err
	}

	issues, err := s.jira.Search(ctx, jql)
	if err != nil {
		return err
	}

	listing, err := collections.Issues(issues)
	if err != nil {
		return err
	}
	s.lastListing = listing
	s.println(listing.Render(true))
	return nil
}

// requireListing guards the commands that operate on the last ls output.
func (s *Shell) requireListing() (*issueListing, bool) {
	if s.lastListing == nil {
		s.println("No listing yet. Run 'ls' first.")
		return nil, false
	}
	return s.lastListing, true
}

func (s *Shell) cmdCard(ctx context.Context, args []string) error {
	if len(args) == 0 {
		s.println("Usage: card <number|KEY> [command]")
		return nil
	}

	var issue models.Issue
	if n, ok := parseNumber(args[0]); ok {
		listing, ok := s.requireListing()
		if !ok {
			return nil
		}
		selected, err := listing.Select(n)
		if err != nil {
			return err
		}
		issue = selected
	} else {
		fetched, err := s.jira.GetIssue(ctx, strings.ToUpper(args[0]))
		if err != nil {
			return err
		}
		issue = *fetched
	}

	card := newCardShell(s, &issue)
	if len(args) > 1 {
		return card.runOne(ctx, strings.Join(args[1:], " "))
	}
	return card.run(ctx)
}

func (s *Shell) cmdNew(ctx context.Context, args []string) error {
	boardCtx, err := s.resolver.Context(ctx)
	if err != nil {
		return err
	}

	s.println("Enter card details. A blank summary cancels.")

	summary, err := s.prompt("Summary", "")
	if err != nil {
		return err
	}
	if summary == "" {
		s.println("Cancelled.")
		return nil
	}

	details, err := s.prompt("Details", "")
	if err != nil {
		return err
	}

	componentNames, err := s.componentNames(ctx)
	if err != nil {
		return err
	}
	component, err := s.selectFrom("Component", componentNames, "")
	if err != nil {
		return err
	}

	label, err := s.selectFrom("Label", s.resolver.ComponentLabels(component), "")
	if err != nil {
		return err
	}
	var labels []string
	if label != "" {
		labels = []string{label}
	}

	assignee, err := s.prompt("Assignee", s.jira.CurrentUsername())
	if err != nil {
		return err
	}

	sprint, err := s.prompt("Sprint name, id, or 'backlog'", boardCtx.CurrentSprintName)
	if err != nil {
		return err
	}

	timeLeft, err := s.prompt("Time left (e.g. 2h30m)", "")
	if err != nil {
		return err
	}

	issueType, err := s.selectFrom("Issue type", issueTypes, "Task")
	if err != nil {
		return err
	}

	if len(labels) > 0 && component != "" {
		if err := s.resolver.CheckLabels(component, labels); err != nil {
			var invalidLabel *resolver.InvalidLabelError
			if !errors.As(err, &invalidLabel) {
				return err
			}
			s.printf("%v\n", err)
			if !s.confirm("Use these labels anyway?") {
				labels = nil
				s.println("Labels dropped; use 'addlabels' on the card later.")
			}
		}
	}

	builder := jira.NewFieldBuilder().
		Summary(summary).
		Description(details).
		Component(component).
		Labels(labels).
		Assignee(assignee).
		IssueType(issueType).
		Project("", boardCtx.ProjectKey, "")
	if timeLeft != "" {
		builder = builder.TimeTracking(timeLeft, timeLeft)
	}
	fields, err := builder.Build()
	if err != nil {
		return err
	}

	created, err := s.jira.CreateIssue(ctx, fields)
	if err != nil {
		return err
	}
	s.printf("Created %s\n", created.Key)

	if sprint != "" && sprint != "backlog" {
		target, err := s.resolver.ResolveSprint(ctx, sprint)
		if err != nil {
			return err
		}
		if err := s.jira.AddIssuesToSprint(ctx, target.ID, []string{created.Key}); err != nil {
			return err
		}
		s.printf("Added %s to sprint '%s'\n", created.Key, target.Name)
	}
	return nil
}

func (s *Shell) componentNames(ctx context.Context) ([]string, error) {
	components, err := s.resolver.Components(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(components))
	for _, component := range components {
		names = append(names, component.Name)
	}
	return names, nil
}

func (s *Shell) cmdTodaysWork(ctx context.Context, args []string) error {
	return s.worklogReport(ctx, common.IsToday)
}

func (s *Shell) cmdYesterdaysWork(ctx context.Context, args []string) error {
	return s.worklogReport(ctx, common.IsYesterday)
}

// worklogReport collects the worklogs of every issue in the last listing
// whose start timestamp passes the day filter.
func (s *Shell) worklogReport(ctx context.Context, onDay func(string) bool) error {
	listing, ok := s.requireListing()
	if !ok {
		return nil
	}

	var matched []models.Worklog
	for _, issue := range listing.Entries() {
		worklogs, err := s.jira.Worklogs(ctx, issue.Key)
		if err != nil {
			return err
		}
		for _, worklog := range worklogs {
			if onDay(worklog.Started) {
				worklog.IssueKey = issue.Key
				matched = append(matched, worklog)
			}
		}
	}

	report, err := collections.Worklogs(matched)
	if err != nil {
		return err
	}
	s.println(report.Render(true))
	return nil
}

func (s *Shell) cmdZeroSweep(ctx context.Context, args []string) error {
	jql, err := s.resolver.ZeroSweepJQL(ctx)
	if err != nil {
		return err
	}
	issues, err := s.jira.Search(ctx, jql)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		s.println("No done cards with time left.")
		return nil
	}

	listing, err := collections.Issues(issues)
	if err != nil {
		return err
	}
	s.println(listing.Render(true))

	if !s.confirm(fmt.Sprintf("Zero the remaining time on these %d cards?", len(issues))) {
		s.println("Cancelled.")
		return nil
	}

	for _, issue := range listing.Entries() {
		fields, err := jira.NewFieldBuilder().
			TimeTracking("0", originalEstimate(&issue)).
			Build()
		if err != nil {
			return err
		}
		if err := s.jira.UpdateIssue(ctx, issue.Key, fields); err != nil {
			return err
		}
		s.printf("Zeroed %s\n", issue.Key)
	}
	return nil
}

func (s *Shell) cmdReload(ctx context.Context, args []string) error {
	if err := s.resolver.Reload(ctx); err != nil {
		return err
	}
	s.lastListing = nil
	s.println("Board context reloaded.")
	return nil
}

func (s *Shell) cmdHelp(ctx context.Context, args []string) error {
	s.printCommands(s.mainCommands())
	return nil
}

func (s *Shell) cmdQuit(ctx context.Context, args []string) error {
	return errQuit
}

// originalEstimate reads the issue's original estimate in the string form an
// update accepts, so setting the remaining time never clobbers it.
func originalEstimate(issue *models.Issue) string {
	tracking := issue.Fields.TimeTracking
	if tracking != nil && tracking.OriginalEstimate != "" {
		return tracking.OriginalEstimate
	}
	if tracking != nil && tracking.OriginalEstimateSeconds > 0 {
		return common.FormatSeconds(tracking.OriginalEstimateSeconds)
	}
	return common.FormatSeconds(issue.Fields.OriginalEstimateSecs)
}

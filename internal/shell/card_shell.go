package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/tabula/internal/collections"
	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/models"
	"github.com/ternarybob/tabula/internal/services/jira"
	"github.com/ternarybob/tabula/internal/services/resolver"
)

// editworkHeader is prepended to the worklog YAML opened in the editor.
const editworkHeader = `# Edit the worklog entries below. Lines starting with '#' are ignored.
# On save, ALL existing entries are replaced with what is listed here.
# timeSpent uses tracker durations ("2h30m"); started keeps the shown format.
`

// cardShell is the nested prompt operating on a single card. It borrows the
// parent shell's I/O and services and tracks its own issue snapshot, which
// goes stale after every mutation and is re-fetched where the operation
// depends on fresh fields.
type cardShell struct {
	*Shell
	issue *models.Issue
}

func newCardShell(s *Shell, issue *models.Issue) *cardShell {
	return &cardShell{Shell: s, issue: issue}
}

func (c *cardShell) commands() []command {
	return []command{
		{name: "show", aliases: []string{"sh"}, help: "show the card with its rendered description", run: c.cmdShow},
		{name: "ls", aliases: []string{"l"}, help: "refresh and show the card row", run: c.cmdShowRow},
		{name: "logwork", aliases: []string{"log"}, help: "log work: logwork <duration> [comment]", run: c.cmdLogWork},
		{name: "lswork", aliases: []string{"lsw"}, help: "list work log entries", run: c.cmdListWork},
		{name: "editwork", aliases: []string{"e"}, help: "edit the full work log in your editor", run: c.cmdEditWork},
		{name: "timeleft", aliases: []string{"t"}, help: "set the remaining time estimate", run: c.cmdTimeLeft},
		{name: "component", aliases: []string{"c"}, help: "set the component", run: c.cmdComponent},
		{name: "addlabels", aliases: []string{"al"}, help: "add label(s)", run: c.cmdAddLabels},
		{name: "rmlabels", aliases: []string{"rl"}, help: "remove label(s)", run: c.cmdRemoveLabels},
		{name: "status", aliases: []string{"s"}, help: "change status by name or number", run: c.cmdStatus},
		{name: "done", aliases: []string{"d"}, help: "zero time left and transition to done", run: c.cmdDone},
		{name: "backlog", aliases: []string{"b"}, help: "move the card to the backlog", run: c.cmdBacklog},
		{name: "pull", aliases: []string{"p"}, help: "pull the card into the current sprint", run: c.cmdPull},
		{name: "assign", aliases: []string{"a"}, help: "assign the card: assign [user]", run: c.cmdAssign},
		{name: "remove", aliases: []string{"r"}, help: "delete the card", run: c.cmdRemove},
		{name: "back", aliases: []string{"q", "quit"}, help: "return to the main prompt", run: c.cmdBack},
	}
}

// run enters the card prompt loop.
func (c *cardShell) run(ctx context.Context) error {
	commands := c.commands()

	c.printf("\nOn card %s. Commands you can use here:\n\n", c.issue.Key)
	c.printCommands(commands)
	c.println("\nUse 'back' to return to the main prompt.")

	for {
		line, err := c.readLine(fmt.Sprintf("tabula/%s> ", c.issue.Key))
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.dispatch(ctx, commands, line); errors.Is(err, errQuit) {
			return nil
		}
	}
}

// runOne executes a single command line without entering the loop, used by
// 'card N <command>' from the main prompt.
func (c *cardShell) runOne(ctx context.Context, line string) error {
	err := c.dispatch(ctx, c.commands(), line)
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// reload re-fetches the issue so subsequent field reads are current.
func (c *cardShell) reload(ctx context.Context) error {
	issue, err := c.jira.GetIssue(ctx, c.issue.Key)
	if err != nil {
		return err
	}
	c.issue = issue
	return nil
}

func (c *cardShell) cmdShow(ctx context.Context, args []string) error {
	issue, err := c.jira.GetIssueRendered(ctx, c.issue.Key)
	if err != nil {
		return err
	}
	c.issue = issue

	description := issue.Fields.Description
	if issue.Rendered != nil && issue.Rendered.Description != "" {
		converter := md.NewConverter("", true, nil)
		if converted, err := converter.ConvertString(issue.Rendered.Description); err == nil {
			description = converted
		} else {
			c.logger.Debug().Err(err).Str("key", issue.Key).Msg("falling back to raw description")
		}
	}

	c.printf("\n%s: %s\n", issue.Key, issue.Fields.Summary)
	if status := issue.Fields.Status; status != nil {
		c.printf("Status: %s\n", status.Name)
	}
	if assignee := issue.Fields.Assignee; assignee != nil {
		c.printf("Assignee: %s\n", assignee.DisplayName)
	}
	if description != "" {
		c.printf("\n%s\n", strings.TrimSpace(description))
	}
	c.println()
	return nil
}

func (c *cardShell) cmdShowRow(ctx context.Context, args []string) error {
	if err := c.reload(ctx); err != nil {
		return err
	}
	row, err := collections.Issues([]models.Issue{*c.issue})
	if err != nil {
		return err
	}
	c.println(row.Render(false))
	return nil
}

func (c *cardShell) cmdLogWork(ctx context.Context, args []string) error {
	var timeSpent string
	var err error
	if len(args) > 0 {
		timeSpent = args[0]
	} else {
		timeSpent, err = c.prompt("Time spent (e.g. 2h30m)", "")
		if err != nil {
			return err
		}
	}
	if timeSpent == "" {
		c.println("Cancelled.")
		return nil
	}

	var comment string
	if len(args) > 1 {
		comment = strings.Join(args[1:], " ")
	} else {
		comment, err = c.prompt("Comment", "")
		if err != nil {
			return err
		}
	}

	if err := c.jira.AddWorklog(ctx, c.issue.Key, time.Now(), common.SanitizeDuration(timeSpent), comment); err != nil {
		return err
	}
	c.println("Work logged.")
	return nil
}

func (c *cardShell) cmdListWork(ctx context.Context, args []string) error {
	worklogs, err := c.jira.Worklogs(ctx, c.issue.Key)
	if err != nil {
		return err
	}
	report, err := collections.Worklogs(worklogs)
	if err != nil {
		return err
	}
	c.println(report.Render(true))
	return nil
}

func (c *cardShell) cmdEditWork(ctx context.Context, args []string) error {
	current, err := c.jira.Worklogs(ctx, c.issue.Key)
	if err != nil {
		return err
	}
	report, err := collections.Worklogs(current)
	if err != nil {
		return err
	}
	text, err := report.ToText()
	if err != nil {
		return err
	}

	edited, err := c.editText(editworkHeader + text)
	if err != nil {
		return err
	}

	var rows []map[string]string
	if err := yaml.Unmarshal([]byte(edited), &rows); err != nil {
		return fmt.Errorf("failed to parse edited worklog: %w", err)
	}

	c.printf("\nThe work log will become:\n\n")
	c.println(edited)
	if !c.confirm("Replace all work log entries with the above?") {
		c.println("Cancelled.")
		return nil
	}

	for _, worklog := range report.Entries() {
		if err := c.jira.DeleteWorklog(ctx, c.issue.Key, worklog.ID); err != nil {
			return err
		}
	}
	for _, row := range rows {
		started, err := common.ParseFriendlyTime(row["started"])
		if err != nil {
			return err
		}
		if err := c.jira.AddWorklog(ctx, c.issue.Key, started, common.SanitizeDuration(row["timeSpent"]), row["comment"]); err != nil {
			return err
		}
	}
	c.printf("Replaced %d work log entries.\n", len(rows))
	return nil
}

func (c *cardShell) cmdTimeLeft(ctx context.Context, args []string) error {
	var remaining string
	var err error
	if len(args) > 0 {
		remaining = strings.Join(args, " ")
	} else {
		remaining, err = c.prompt("Time left (e.g. 2h30m)", "")
		if err != nil {
			return err
		}
	}
	if remaining == "" {
		c.println("Cancelled.")
		return nil
	}
	return c.setTimeLeft(ctx, remaining)
}

// setTimeLeft updates the remaining estimate. The issue is reloaded first so
// the original estimate it re-sends is the server's current value.
func (c *cardShell) setTimeLeft(ctx context.Context, remaining string) error {
	if err := c.reload(ctx); err != nil {
		return err
	}
	fields, err := jira.NewFieldBuilder().
		TimeTracking(remaining, originalEstimate(c.issue)).
		Build()
	if err != nil {
		return err
	}
	if err := c.jira.UpdateIssue(ctx, c.issue.Key, fields); err != nil {
		return err
	}
	c.printf("Time left set to %s\n", common.SanitizeDuration(remaining))
	return nil
}

func (c *cardShell) cmdComponent(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		names, err := c.componentNames(ctx)
		if err != nil {
			return err
		}
		text, err = c.selectFrom("Component", names, "")
		if err != nil {
			return err
		}
	}
	if text == "" {
		c.println("Cancelled.")
		return nil
	}

	component, err := c.resolver.ResolveComponent(ctx, text)
	if err != nil {
		return err
	}
	fields, err := jira.NewFieldBuilder().Component(component.Name).Build()
	if err != nil {
		return err
	}
	if err := c.jira.UpdateIssue(ctx, c.issue.Key, fields); err != nil {
		return err
	}
	c.printf("Component set to %s\n", component.Name)
	return c.reload(ctx)
}

// issueComponent names the card's first component, empty when unset.
func (c *cardShell) issueComponent() string {
	if len(c.issue.Fields.Components) > 0 {
		return c.issue.Fields.Components[0].Name
	}
	return ""
}

func (c *cardShell) cmdAddLabels(ctx context.Context, args []string) error {
	labels := args
	if len(labels) == 0 {
		component := c.issueComponent()
		picked, err := c.selectFrom("Label", c.resolver.ComponentLabels(component), "")
		if err != nil {
			return err
		}
		if picked == "" {
			c.println("Cancelled.")
			return nil
		}
		labels = strings.Fields(picked)
	}

	merged := mergeLabels(c.issue.Fields.Labels, labels)

	if component := c.issueComponent(); component != "" {
		if err := c.resolver.CheckLabels(component, merged); err != nil {
			var invalidLabel *resolver.InvalidLabelError
			if !errors.As(err, &invalidLabel) {
				return err
			}
			c.printf("%v\n", err)
			if !c.confirm("Add these labels anyway?") {
				c.println("Cancelled.")
				return nil
			}
		}
	}

	return c.updateLabels(ctx, merged)
}

func (c *cardShell) cmdRemoveLabels(ctx context.Context, args []string) error {
	remove := args
	if len(remove) == 0 {
		entered, err := c.prompt("Labels to remove (space-separated)", "")
		if err != nil {
			return err
		}
		if entered == "" {
			c.println("Cancelled.")
			return nil
		}
		remove = strings.Fields(entered)
	}

	drop := map[string]bool{}
	for _, label := range remove {
		drop[label] = true
	}
	var kept []string
	for _, label := range c.issue.Fields.Labels {
		if !drop[label] {
			kept = append(kept, label)
		}
	}
	if kept == nil {
		kept = []string{}
	}
	return c.updateLabels(ctx, kept)
}

func (c *cardShell) updateLabels(ctx context.Context, labels []string) error {
	fields, err := jira.NewFieldBuilder().Labels(labels).Build()
	if err != nil {
		return err
	}
	if err := c.jira.UpdateIssue(ctx, c.issue.Key, fields); err != nil {
		return err
	}
	c.printf("Labels now: %s\n", strings.Join(labels, ", "))
	return c.reload(ctx)
}

// mergeLabels unions current and added labels preserving first-seen order.
func mergeLabels(current, added []string) []string {
	seen := map[string]bool{}
	merged := make([]string, 0, len(current)+len(added))
	for _, label := range append(append([]string{}, current...), added...) {
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		merged = append(merged, label)
	}
	return merged
}

func (c *cardShell) cmdStatus(ctx context.Context, args []string) error {
	available, err := c.resolver.AvailableStatuses(ctx, c.issue.Key)
	if err != nil {
		return err
	}
	if len(available) == 0 {
		c.println("No transitions available for this card.")
		return nil
	}

	selection := strings.Join(args, " ")
	transitionID, err := c.resolver.ResolveStatusID(available, selection)
	for err != nil {
		if selection != "" {
			c.printf("'%s' is not a valid status for this card.\n", selection)
		}
		c.println("Available statuses:")
		for _, status := range available {
			c.printf("  %d) %s\n", status.SelectionNumber, status.DisplayName)
		}
		selection, err = c.prompt("Select new status (name or number)", "")
		if err != nil {
			return err
		}
		transitionID, err = c.resolver.ResolveStatusID(available, selection)
	}

	if err := c.jira.TransitionIssue(ctx, c.issue.Key, transitionID); err != nil {
		return err
	}
	c.println("Status updated.")
	return c.reload(ctx)
}

func (c *cardShell) cmdDone(ctx context.Context, args []string) error {
	if err := c.setTimeLeft(ctx, "0"); err != nil {
		return err
	}
	return c.cmdStatus(ctx, []string{"done"})
}

func (c *cardShell) cmdBacklog(ctx context.Context, args []string) error {
	if err := c.jira.MoveToBacklog(ctx, []string{c.issue.Key}); err != nil {
		return err
	}
	c.printf("%s moved to the backlog.\n", c.issue.Key)
	return nil
}

func (c *cardShell) cmdPull(ctx context.Context, args []string) error {
	boardCtx, err := c.resolver.Context(ctx)
	if err != nil {
		return err
	}
	if err := c.jira.AddIssuesToSprint(ctx, boardCtx.CurrentSprintID, []string{c.issue.Key}); err != nil {
		return err
	}
	c.printf("%s pulled into sprint '%s'.\n", c.issue.Key, boardCtx.CurrentSprintName)
	return nil
}

func (c *cardShell) cmdAssign(ctx context.Context, args []string) error {
	var assignee string
	var err error
	if len(args) > 0 {
		assignee = args[0]
	} else {
		assignee, err = c.prompt("Assignee user id (blank to unassign)", "")
		if err != nil {
			return err
		}
	}

	if assignee == "" {
		if !c.confirm("A blank assignee unassigns the card. Continue?") {
			c.println("Assignment unchanged.")
			return nil
		}
	}

	if err := c.jira.AssignIssue(ctx, c.issue.Key, assignee); err != nil {
		return err
	}
	if assignee == "" {
		c.println("Card unassigned.")
	} else {
		c.printf("Assigned to %s\n", assignee)
	}
	return c.reload(ctx)
}

func (c *cardShell) cmdRemove(ctx context.Context, args []string) error {
	if !c.confirm(fmt.Sprintf("Delete %s? This cannot be undone.", c.issue.Key)) {
		c.println("Cancelled.")
		return nil
	}
	if err := c.jira.DeleteIssue(ctx, c.issue.Key); err != nil {
		return err
	}
	c.printf("Deleted %s, returning to the main prompt.\n", c.issue.Key)
	return errQuit
}

func (c *cardShell) cmdBack(ctx context.Context, args []string) error {
	return errQuit
}

package collections

import (
	"strings"

	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/models"
)

// summaryWidth bounds the summary column so the table stays readable.
const summaryWidth = 50

// Issues builds the standard issue listing: one row per issue sorted by
// status name, with a totals row summing time spent and time left.
func Issues(issues []models.Issue) (*Collection[models.Issue], error) {
	return New(issues, Config[models.Issue]{
		FieldNames: []string{"key", "summary", "component", "label", "status", "timeSpent", "timeLeft"},
		AlignLeft:  []string{"summary"},
		Row:        issueRow,
		Totals:     issueTotals,
		Less: func(a, b models.Issue) bool {
			return statusName(a) < statusName(b)
		},
	})
}

func issueRow(issue models.Issue) []string {
	f := issue.Fields

	component := ""
	if len(f.Components) > 0 {
		component = f.Components[0].Name
	}

	return []string{
		issue.Key,
		Truncate(f.Summary, summaryWidth),
		component,
		strings.Join(f.Labels, ", "),
		statusName(issue),
		common.FormatSeconds(f.TimeSpentSeconds),
		common.FormatSeconds(f.TimeEstimateSeconds),
	}
}

func issueTotals(issues []models.Issue) []string {
	var spent, left int64
	for _, issue := range issues {
		spent += issue.Fields.TimeSpentSeconds
		left += issue.Fields.TimeEstimateSeconds
	}
	return []string{"", "", "", "", "",
		common.FormatSeconds(spent),
		common.FormatSeconds(left),
	}
}

func statusName(issue models.Issue) string {
	if issue.Fields.Status == nil {
		return ""
	}
	return issue.Fields.Status.Name
}

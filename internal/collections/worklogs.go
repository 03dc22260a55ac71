package collections

import (
	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/models"
)

// commentWidth bounds the worklog comment column.
const commentWidth = 88

// Worklogs builds a worklog listing sorted by start time, with a totals row
// summing time spent.
func Worklogs(worklogs []models.Worklog) (*Collection[models.Worklog], error) {
	return New(worklogs, Config[models.Worklog]{
		FieldNames: []string{"timeSpent", "started", "comment"},
		AlignLeft:  []string{"comment"},
		Row:        worklogRow,
		Totals:     worklogTotals,
		Less: func(a, b models.Worklog) bool {
			ta, errA := common.ParseIssueTime(a.Started)
			tb, errB := common.ParseIssueTime(b.Started)
			if errA != nil || errB != nil {
				return a.Started < b.Started
			}
			return ta.Before(tb)
		},
	})
}

func worklogRow(worklog models.Worklog) []string {
	return []string{
		common.FormatSeconds(worklog.TimeSpentSeconds),
		common.FormatFriendlyTime(worklog.Started),
		Truncate(worklog.Comment, commentWidth),
	}
}

func worklogTotals(worklogs []models.Worklog) []string {
	var spent int64
	for _, worklog := range worklogs {
		spent += worklog.TimeSpentSeconds
	}
	return []string{common.FormatSeconds(spent), "", ""}
}

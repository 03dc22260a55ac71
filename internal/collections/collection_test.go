package collections

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/tabula/internal/models"
)

type entry struct {
	Name  string
	Count int
}

func entryConfig() Config[entry] {
	return Config[entry]{
		FieldNames: []string{"name", "count"},
		AlignLeft:  []string{"name"},
		Row: func(e entry) []string {
			return []string{e.Name, strconv.Itoa(e.Count)}
		},
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config[entry])
		wantErr string
	}{
		{
			name:    "no fields",
			mutate:  func(c *Config[entry]) { c.FieldNames = nil },
			wantErr: "at least one field",
		},
		{
			name:    "duplicate field names",
			mutate:  func(c *Config[entry]) { c.FieldNames = []string{"name", "name"} },
			wantErr: "duplicate field name",
		},
		{
			name:    "align-left not a field",
			mutate:  func(c *Config[entry]) { c.AlignLeft = []string{"nope"} },
			wantErr: "not a declared field",
		},
		{
			name:    "missing row projection",
			mutate:  func(c *Config[entry]) { c.Row = nil },
			wantErr: "row projection",
		},
		{
			name: "row projection builds wrong width",
			mutate: func(c *Config[entry]) {
				c.Row = func(e entry) []string { return []string{e.Name} }
			},
			wantErr: "row projection built",
		},
		{
			name: "totals projection builds wrong width",
			mutate: func(c *Config[entry]) {
				c.Totals = func([]entry) []string { return []string{"x"} }
			},
			wantErr: "totals projection built",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := entryConfig()
			tt.mutate(&config)
			_, err := New([]entry{{Name: "a", Count: 1}}, config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewEmptyEntriesSkipsProjectionProbe(t *testing.T) {
	config := entryConfig()
	config.Row = func(e entry) []string { return nil } // would fail the probe
	_, err := New(nil, config)
	assert.NoError(t, err)
}

func TestSelectBounds(t *testing.T) {
	collection, err := New([]entry{{"a", 1}, {"b", 2}, {"c", 3}}, entryConfig())
	require.NoError(t, err)

	first, err := collection.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Name)

	last, err := collection.Select(3)
	require.NoError(t, err)
	assert.Equal(t, "c", last.Name)

	_, err = collection.Select(0)
	assert.Error(t, err)
	_, err = collection.Select(4)
	assert.Error(t, err)
}

func TestSortHappensOnceAtConstruction(t *testing.T) {
	config := entryConfig()
	config.Less = func(a, b entry) bool { return a.Name < b.Name }

	collection, err := New([]entry{{"c", 3}, {"a", 1}, {"b", 2}}, config)
	require.NoError(t, err)

	// Display numbering follows the sorted order and stays stable.
	first, err := collection.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Name)
	third, err := collection.Select(3)
	require.NoError(t, err)
	assert.Equal(t, "c", third.Name)
}

func TestRenderContainsNumberedRows(t *testing.T) {
	collection, err := New([]entry{{"alpha", 1}, {"beta", 2}}, entryConfig())
	require.NoError(t, err)

	rendered := collection.Render(false)
	assert.Contains(t, rendered, "no.")
	assert.Contains(t, rendered, "alpha")
	assert.Contains(t, rendered, "beta")
	assert.NotContains(t, rendered, "total")
}

func TestRenderTotalsRowBehindDivider(t *testing.T) {
	config := entryConfig()
	config.Totals = func(entries []entry) []string {
		sum := 0
		for _, e := range entries {
			sum += e.Count
		}
		return []string{"", strconv.Itoa(sum)}
	}

	collection, err := New([]entry{{"a", 1}, {"b", 2}}, config)
	require.NoError(t, err)

	rendered := collection.Render(true)
	lines := strings.Split(rendered, "\n")
	require.Contains(t, rendered, "total")
	require.Contains(t, rendered, "3")

	// The divider above the totals row duplicates the header divider.
	assert.Equal(t, lines[2], lines[len(lines)-3])
}

func TestRenderWithTotalsButNoProjection(t *testing.T) {
	collection, err := New([]entry{{"a", 1}}, entryConfig())
	require.NoError(t, err)

	// Missing totals projection renders without a totals row, not an error.
	rendered := collection.Render(true)
	assert.NotContains(t, rendered, "total")
}

func TestToTextRoundTrips(t *testing.T) {
	collection, err := New([]entry{{"a", 1}, {"b", 2}}, entryConfig())
	require.NoError(t, err)

	text, err := collection.ToText()
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(text), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["name"])
	assert.Equal(t, "2", rows[1]["count"])
}

func TestToTextSingleEntry(t *testing.T) {
	collection, err := New([]entry{{"a", 1}, {"b", 2}}, entryConfig())
	require.NoError(t, err)

	second, err := collection.Select(2)
	require.NoError(t, err)

	text, err := collection.ToText(second)
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(text), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["name"])
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 50, "short"},
		{strings.Repeat("x", 50), 50, strings.Repeat("x", 50)},
		{strings.Repeat("x", 51), 50, strings.Repeat("x", 49) + "..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.input, tt.max); got != tt.want {
			t.Errorf("Truncate(%d chars, %d) = %q", len(tt.input), tt.max, got)
		}
	}
}

func issueWith(key, summary, status string, spent, estimate int64) models.Issue {
	return models.Issue{
		Key: key,
		Fields: models.IssueFields{
			Summary:             summary,
			Status:              &models.Status{Name: status},
			Labels:              []string{"urgent"},
			Components:          []models.Component{{Name: "backend"}},
			TimeSpentSeconds:    spent,
			TimeEstimateSeconds: estimate,
		},
	}
}

func TestIssuesCollectionSortsByStatus(t *testing.T) {
	collection, err := Issues([]models.Issue{
		issueWith("PROJ-2", "second", "To Do", 0, 0),
		issueWith("PROJ-1", "first", "Done", 0, 0),
	})
	require.NoError(t, err)

	first, err := collection.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "PROJ-1", first.Key)
}

func TestIssuesTotalsSumTimes(t *testing.T) {
	collection, err := Issues([]models.Issue{
		issueWith("PROJ-1", "first", "Done", 3600, 1800),
		issueWith("PROJ-2", "second", "Done", 1800, 0),
	})
	require.NoError(t, err)

	rendered := collection.Render(true)
	assert.Contains(t, rendered, "1h30m", "summed time spent")
	assert.Contains(t, rendered, "30m", "summed time left")
}

func TestIssuesZeroDurationsRenderAsZeroMinutes(t *testing.T) {
	collection, err := Issues([]models.Issue{
		issueWith("PROJ-1", "first", "Done", 0, 0),
	})
	require.NoError(t, err)

	row := issueRow(collection.Entries()[0])
	assert.Equal(t, "0m", row[5])
	assert.Equal(t, "0m", row[6])
}

func TestIssueSummaryTruncated(t *testing.T) {
	long := strings.Repeat("s", 60)
	collection, err := Issues([]models.Issue{
		issueWith("PROJ-1", long, "Done", 0, 0),
	})
	require.NoError(t, err)

	row := issueRow(collection.Entries()[0])
	assert.Equal(t, strings.Repeat("s", 49)+"...", row[1])
}

func TestWorklogsSortedByStart(t *testing.T) {
	collection, err := Worklogs([]models.Worklog{
		{Started: "2024-03-02T10:00:00.000+0000", TimeSpentSeconds: 1800, Comment: "later"},
		{Started: "2024-03-01T10:00:00.000+0000", TimeSpentSeconds: 3600, Comment: "earlier"},
	})
	require.NoError(t, err)

	first, err := collection.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "earlier", first.Comment)
}

func TestWorklogTotals(t *testing.T) {
	collection, err := Worklogs([]models.Worklog{
		{Started: "2024-03-01T10:00:00.000+0000", TimeSpentSeconds: 3600},
		{Started: "2024-03-01T11:00:00.000+0000", TimeSpentSeconds: 1800},
	})
	require.NoError(t, err)

	totals := worklogTotals(collection.Entries())
	assert.Equal(t, []string{"1h30m", "", ""}, totals)
}

func TestWorklogCommentTruncated(t *testing.T) {
	long := strings.Repeat("c", 100)
	row := worklogRow(models.Worklog{Started: "2024-03-01T10:00:00.000+0000", Comment: long})
	assert.Equal(t, strings.Repeat("c", 87)+"...", row[2])
}

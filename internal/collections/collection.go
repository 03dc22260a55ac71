// Package collections wraps ordered lists of remote resources (issues,
// worklog entries) behind a stable 1-based display numbering, a tabular
// rendering with an optional totals row, and a text form for editor flows.
package collections

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Config declares how a Collection projects and orders its entries. The
// entry type is fixed at compile time by the type parameter.
type Config[T any] struct {
	// FieldNames are the displayed column names, unique and ordered.
	FieldNames []string
	// AlignLeft names the free-text columns rendered left-aligned. Must be
	// a subset of FieldNames.
	AlignLeft []string
	// Row projects one entry into its ordered field values.
	Row func(T) []string
	// Totals optionally aggregates all entries into a totals row.
	Totals func([]T) []string
	// Less optionally orders entries at construction, ascending.
	Less func(a, b T) bool
}

// Collection is an immutable-after-construction view over same-typed remote
// resources. Display index N maps to the same entry for the collection's
// lifetime; refreshing or resorting means building a new collection.
type Collection[T any] struct {
	entries    []T
	fieldNames []string
	alignLeft  map[string]bool
	row        func(T) []string
	totals     func([]T) []string
}

// New validates the configuration and builds a collection. Entries are
// sorted once, here, when a Less is supplied; the projection is probed
// against a sample entry so a malformed Row fails fast instead of at render
// time.
func New[T any](entries []T, config Config[T]) (*Collection[T], error) {
	if len(config.FieldNames) == 0 {
		return nil, fmt.Errorf("collection needs at least one field name")
	}
	seen := map[string]bool{}
	for _, name := range config.FieldNames {
		if seen[name] {
			return nil, fmt.Errorf("duplicate field name %q", name)
		}
		seen[name] = true
	}

	alignLeft := map[string]bool{}
	for _, name := range config.AlignLeft {
		if !seen[name] {
			return nil, fmt.Errorf("align-left field %q is not a declared field", name)
		}
		alignLeft[name] = true
	}

	if config.Row == nil {
		return nil, fmt.Errorf("collection needs a row projection")
	}

	sorted := make([]T, len(entries))
	copy(sorted, entries)
	if config.Less != nil {
		sort.SliceStable(sorted, func(i, j int) bool {
			return config.Less(sorted[i], sorted[j])
		})
	}

	if len(sorted) > 0 {
		sample := config.Row(sorted[0])
		if len(sample) != len(config.FieldNames) {
			return nil, fmt.Errorf("row projection built %d values for %d fields", len(sample), len(config.FieldNames))
		}
		if config.Totals != nil {
			totals := config.Totals(sorted)
			if len(totals) != len(config.FieldNames) {
				return nil, fmt.Errorf("totals projection built %d values for %d fields", len(totals), len(config.FieldNames))
			}
		}
	}

	return &Collection[T]{
		entries:    sorted,
		fieldNames: config.FieldNames,
		alignLeft:  alignLeft,
		row:        config.Row,
		totals:     config.Totals,
	}, nil
}

// Len returns the number of entries.
func (c *Collection[T]) Len() int {
	return len(c.entries)
}

// Entries returns the entries in display order.
func (c *Collection[T]) Entries() []T {
	return c.entries
}

// Select returns the entry at the given 1-based display position.
func (c *Collection[T]) Select(number int) (T, error) {
	var zero T
	if number < 1 || number > len(c.entries) {
		return zero, fmt.Errorf("no entry numbered %d (table has %d)", number, len(c.entries))
	}
	return c.entries[number-1], nil
}

// Render produces the bordered table with a leading "no." column. When
// totals are requested and a totals projection exists, a totals row is
// appended behind an extra divider line; without a projection the table
// renders without totals rather than failing.
func (c *Collection[T]) Render(withTotals bool) string {
	headers := append([]string{"no."}, c.fieldNames...)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle()).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Align(lipgloss.Center)
			}
			if col > 0 && c.alignLeft[c.fieldNames[col-1]] {
				return style.Align(lipgloss.Left)
			}
			return style.Align(lipgloss.Center)
		}).
		Headers(headers...)

	for i, entry := range c.entries {
		t.Row(append([]string{fmt.Sprint(i + 1)}, c.row(entry)...)...)
	}

	showTotals := withTotals && c.totals != nil && len(c.entries) > 0
	if showTotals {
		t.Row(append([]string{"total"}, c.totals(c.entries)...)...)
	}

	rendered := t.Render()
	if !showTotals {
		return rendered
	}

	// Set the totals row off from the data rows by duplicating the header
	// divider above it.
	lines := strings.Split(rendered, "\n")
	if len(lines) < 4 {
		return rendered
	}
	divider := lines[2]
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:len(lines)-2]...)
	out = append(out, divider)
	out = append(out, lines[len(lines)-2:]...)
	return strings.Join(out, "\n")
}

// ToText serializes the row-projected view of the given entries (or all of
// them when none are given) as a YAML block of field name to value, the
// form the editor-based review flows round-trip.
func (c *Collection[T]) ToText(subset ...T) (string, error) {
	entries := c.entries
	if len(subset) > 0 {
		entries = subset
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		values := c.row(entry)
		row := make(map[string]string, len(c.fieldNames))
		for i, name := range c.fieldNames {
			row[name] = values[i]
		}
		rows = append(rows, row)
	}

	out, err := yaml.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to serialize entries: %w", err)
	}
	return string(out), nil
}

// Truncate bounds a free-text cell: text longer than max keeps the first
// max-1 runes and gains an ellipsis marker.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "..."
}

package jira

import (
	"fmt"

	"github.com/ternarybob/tabula/internal/common"
)

// FieldBuilder accumulates a sparse issue field payload through chained
// setters. Each setter is a no-op on empty input, so a partial update never
// overwrites fields the caller did not intend to touch. One explicit method
// exists per recognized field; nothing open-ended reaches the server.
//
//	fields, err := jira.NewFieldBuilder().
//		Summary("my summary").
//		Component("backend").
//		Labels([]string{"urgent"}).
//		Build()
type FieldBuilder struct {
	fields map[string]any
	err    error
}

// NewFieldBuilder creates an empty field payload builder.
func NewFieldBuilder() *FieldBuilder {
	return &FieldBuilder{fields: map[string]any{}}
}

// Summary sets the issue summary.
func (b *FieldBuilder) Summary(text string) *FieldBuilder {
	if text != "" {
		b.fields["summary"] = text
	}
	return b
}

// Description sets the issue description.
func (b *FieldBuilder) Description(text string) *FieldBuilder {
	if text != "" {
		b.fields["description"] = text
	}
	return b
}

// Component sets the issue's component by name, replacing any existing set.
func (b *FieldBuilder) Component(name string) *FieldBuilder {
	if name != "" {
		b.fields["components"] = []map[string]string{{"name": name}}
	}
	return b
}

// Labels replaces the issue's label set.
func (b *FieldBuilder) Labels(labels []string) *FieldBuilder {
	if len(labels) > 0 {
		b.fields["labels"] = labels
	}
	return b
}

// Assignee sets the assignee by user id.
func (b *FieldBuilder) Assignee(name string) *FieldBuilder {
	if name != "" {
		b.fields["assignee"] = map[string]string{"name": name}
	}
	return b
}

// IssueType sets the issue type by name ("Task", "Story", "Bug", "Epic").
func (b *FieldBuilder) IssueType(name string) *FieldBuilder {
	if name != "" {
		b.fields["issuetype"] = map[string]string{"name": name}
	}
	return b
}

// Project sets the issue's project. At least one of name, key, or id must be
// given; this is validated before any network call.
func (b *FieldBuilder) Project(name, key, id string) *FieldBuilder {
	if name == "" && key == "" && id == "" {
		b.err = fmt.Errorf("project needs at least one of: name, key, id")
		return b
	}
	project := map[string]string{}
	if name != "" {
		project["name"] = name
	}
	if key != "" {
		project["key"] = key
	}
	if id != "" {
		project["id"] = id
	}
	b.fields["project"] = project
	return b
}

// TimeTracking sets the remaining and original estimates together. Both are
// always sent as a pair: omitting originalEstimate resets it to zero
// server-side, so sending remaining alone would silently clobber it.
func (b *FieldBuilder) TimeTracking(remaining, original string) *FieldBuilder {
	b.fields["timetracking"] = map[string]string{
		"remainingEstimate": common.SanitizeDuration(remaining),
		"originalEstimate":  common.SanitizeDuration(original),
	}
	return b
}

// Build assembles the accumulated fields into the update payload shape the
// tracker expects, or reports the first validation error hit while chaining.
func (b *FieldBuilder) Build() (map[string]any, error) {
	if b.err != nil {
		return nil, b.err
	}
	return map[string]any{"fields": b.fields}, nil
}

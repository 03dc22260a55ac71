package resolver

import "fmt"

// NotFoundError is returned when user-supplied text matches no server-side
// board, project, sprint, component, or status.
type NotFoundError struct {
	Kind string // "board", "project", "sprint", "component", "status"
	Text string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching '%s'", e.Kind, e.Text)
}

// InvalidLabelError reports the first label not allowed for a component by
// the configured component/labels map. The caller may force past it.
type InvalidLabelError struct {
	Component string
	Label     string
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("label '%s' is not valid for component '%s'", e.Label, e.Component)
}

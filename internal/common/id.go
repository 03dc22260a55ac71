package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a unique session ID with the "ses_" prefix
// Format: ses_<uuid>
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}

// NewCommandID generates a unique command correlation ID with the "cmd_" prefix
// Format: cmd_<uuid>
func NewCommandID() string {
	return "cmd_" + uuid.New().String()
}

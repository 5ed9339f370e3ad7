package enums

import "fmt"

// MessageSeverity tags system chat messages.
type MessageSeverity string

const (
	SeverityInfo    MessageSeverity = "info"
	SeverityWarning MessageSeverity = "warning"
	SeveritySuccess MessageSeverity = "success"
	SeverityError   MessageSeverity = "error"
)

var validMessageSeverities = []MessageSeverity{
	SeverityInfo,
	SeverityWarning,
	SeveritySuccess,
	SeverityError,
}

// IsValid reports whether the value is a known MessageSeverity.
func (s MessageSeverity) IsValid() bool {
	for _, candidate := range validMessageSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMessageSeverity converts raw input into a MessageSeverity.
func ParseMessageSeverity(value string) (MessageSeverity, error) {
	for _, candidate := range validMessageSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message severity %q", value)
}

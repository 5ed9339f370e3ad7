package enums

import "fmt"

// LinkStatus tracks a consumer's relationship with a supplier.
type LinkStatus string

const (
	LinkStatusPending  LinkStatus = "pending"
	LinkStatusAccepted LinkStatus = "accepted"
	LinkStatusRejected LinkStatus = "rejected"
	LinkStatusBlocked  LinkStatus = "blocked"
)

var validLinkStatuses = []LinkStatus{
	LinkStatusPending,
	LinkStatusAccepted,
	LinkStatusRejected,
	LinkStatusBlocked,
}

func (s LinkStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LinkStatus.
func (s LinkStatus) IsValid() bool {
	for _, candidate := range validLinkStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLinkStatus converts raw input into a LinkStatus.
func ParseLinkStatus(value string) (LinkStatus, error) {
	for _, candidate := range validLinkStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid link status %q", value)
}

// LinkDecision is a supplier's answer to a pending link request.
type LinkDecision string

const (
	LinkDecisionAccept LinkDecision = "accept"
	LinkDecisionReject LinkDecision = "reject"
	LinkDecisionBlock  LinkDecision = "block"
)

var validLinkDecisions = []LinkDecision{
	LinkDecisionAccept,
	LinkDecisionReject,
	LinkDecisionBlock,
}

// IsValid reports whether the value is a known LinkDecision.
func (d LinkDecision) IsValid() bool {
	for _, candidate := range validLinkDecisions {
		if candidate == d {
			return true
		}
	}
	return false
}

// Status maps the decision onto the resulting link status.
func (d LinkDecision) Status() LinkStatus {
	switch d {
	case LinkDecisionAccept:
		return LinkStatusAccepted
	case LinkDecisionBlock:
		return LinkStatusBlocked
	default:
		return LinkStatusRejected
	}
}

// ParseLinkDecision converts raw input into a LinkDecision.
func ParseLinkDecision(value string) (LinkDecision, error) {
	for _, candidate := range validLinkDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid link decision %q", value)
}

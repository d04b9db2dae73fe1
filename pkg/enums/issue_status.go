package enums

import "fmt"

// IssueStatus tracks a customer-reported order issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusClosed     IssueStatus = "closed"
)

var validIssueStatuses = []IssueStatus{
	IssueStatusOpen,
	IssueStatusInProgress,
	IssueStatusResolved,
	IssueStatusClosed,
}

// String implements fmt.Stringer.
func (i IssueStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IssueStatus.
func (i IssueStatus) IsValid() bool {
	for _, candidate := range validIssueStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIssueStatus converts raw input into an IssueStatus.
func ParseIssueStatus(value string) (IssueStatus, error) {
	for _, candidate := range validIssueStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid issue status %q", value)
}

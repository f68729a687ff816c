package domain

import "time"

// ChangeType captures what changed in a history entry.
type ChangeType string

const (
	ChangeTypeCreated    ChangeType = "CREATED"
	ChangeTypeStatus     ChangeType = "STATUS_CHANGE"
	ChangeTypeAssignment ChangeType = "ASSIGNMENT_CHANGE"
	ChangeTypeLiaison    ChangeType = "LIAISON_CHANGE"
)

// ReportHistory is an immutable audit trail entry.
type ReportHistory struct {
	ID          string
	ReportID    string
	ChangedByID *string
	ChangedBy   Role
	ChangeType  ChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}

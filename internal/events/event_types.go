package events

import (
	"time"

	"github.com/civic-kit/report-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReportCreated       EventType = "report_created"
	EventReportStatusChanged EventType = "report_status_changed"
	EventReportAssigned      EventType = "report_assigned"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   *string     `json:"id,omitempty"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services. Sensitive events never carry
// category, description, address or location.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	ReportID       string      `json:"report_id"`
	TrackingNumber string      `json:"tracking_number"`
	TenantID       string      `json:"tenant_id"`
	Sensitive      bool        `json:"sensitive"`
	Actor          Actor       `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// ReportCreatedPayload payload. Category and Ward are nil for sensitive reports.
type ReportCreatedPayload struct {
	Category *domain.Category `json:"category,omitempty"`
	Ward     *string          `json:"ward,omitempty"`
	Severity domain.Severity  `json:"severity"`
}

// ReportStatusChangedPayload payload.
type ReportStatusChangedPayload struct {
	OldStatus domain.ReportStatus `json:"old_status"`
	NewStatus domain.ReportStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// ReportAssignedPayload payload. Liaison is set only for sensitive reports.
type ReportAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	TeamName   string  `json:"team_name,omitempty"`
	Liaison    bool    `json:"liaison"`
	Station    string  `json:"station,omitempty"`
}

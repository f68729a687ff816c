package dto

import (
	"time"

	"github.com/civic-kit/report-service/internal/domain"
)

// View discriminators rendered with every projected report.
const (
	ViewFull    = "full"
	ViewLimited = "limited"
)

// CreateReportRequest payload.
type CreateReportRequest struct {
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Address     string            `json:"address"`
	Ward        *string           `json:"ward"`
	Location    *domain.GeoPoint  `json:"location"`
	Media       []domain.MediaRef `json:"media"`
	Severity    domain.Severity   `json:"severity"`
}

// AssignmentResponse is the routine assignment of an ordinary report.
type AssignmentResponse struct {
	AssigneeID   *string `json:"assignee_id"`
	AssigneeName string  `json:"assignee_name"`
	TeamName     string  `json:"team_name"`
}

// LiaisonResponse is the police liaison routing of a sensitive report.
type LiaisonResponse struct {
	OfficerName  string `json:"officer_name"`
	StationName  string `json:"station_name"`
	StationPhone string `json:"station_phone"`
}

// FullReportResponse renders every field of a report.
type FullReportResponse struct {
	View           string              `json:"view"`
	TrackingNumber string              `json:"tracking_number"`
	TenantID       string              `json:"tenant_id"`
	Ward           *string             `json:"ward"`
	Category       domain.Category     `json:"category"`
	Description    string              `json:"description"`
	Address        string              `json:"address"`
	Location       *domain.GeoPoint    `json:"location"`
	Media          []domain.MediaRef   `json:"media"`
	Severity       domain.Severity     `json:"severity"`
	Status         domain.ReportStatus `json:"status"`
	Sensitive      bool                `json:"sensitive"`
	Assignment     *AssignmentResponse `json:"assignment"`
	Liaison        *LiaisonResponse    `json:"liaison"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	ResolvedAt     *time.Time          `json:"resolved_at"`
}

// EmergencyContactResponse is one hotline.
type EmergencyContactResponse struct {
	Label  string `json:"label"`
	Number string `json:"number"`
}

// LimitedReportResponse renders the restricted view. It has no field for
// category, description, address, location, media or assignment.
type LimitedReportResponse struct {
	View                string                     `json:"view"`
	TrackingNumber      string                     `json:"tracking_number"`
	Status              domain.ReportStatus        `json:"status"`
	AssignedOfficerName string                     `json:"assigned_officer_name,omitempty"`
	StationName         string                     `json:"station_name,omitempty"`
	StationPhone        string                     `json:"station_phone,omitempty"`
	EmergencyContacts   []EmergencyContactResponse `json:"emergency_contacts"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID            string            `json:"id"`
	ChangeType    domain.ChangeType `json:"change_type"`
	ChangedByRole domain.Role       `json:"changed_by_role,omitempty"`
	ChangedByID   *string           `json:"changed_by_id,omitempty"`
	OldValue      map[string]any    `json:"old_value"`
	NewValue      map[string]any    `json:"new_value"`
	CreatedAt     time.Time         `json:"created_at"`
}

package dto

import "github.com/civic-kit/report-service/internal/domain"

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  domain.ReportStatus `json:"status"`
	Comment string              `json:"comment"`
}

// LiaisonRequest routes a sensitive report to a police liaison.
type LiaisonRequest struct {
	OfficerName  string `json:"officer_name"`
	StationName  string `json:"station_name"`
	StationPhone string `json:"station_phone"`
}

// AssignRequest carries either routine assignment fields or a liaison block.
type AssignRequest struct {
	AssigneeID   *string         `json:"assignee_id"`
	AssigneeName string          `json:"assignee_name"`
	TeamName     string          `json:"team_name"`
	Liaison      *LiaisonRequest `json:"liaison"`
}

// CreateStaffRequest payload for admin provisioning.
type CreateStaffRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	Wards    []string    `json:"wards"`
}

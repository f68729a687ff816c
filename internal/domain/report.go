package domain

import "time"

// Category is the service area a citizen files a report under.
type Category string

const (
	CategoryWater        Category = "Water"
	CategoryElectricity  Category = "Electricity"
	CategoryRoads        Category = "Roads"
	CategoryWaste        Category = "Waste"
	CategorySanitation   Category = "Sanitation"
	CategoryHousing      Category = "Housing"
	CategoryParks        Category = "Parks"
	CategoryPublicSafety Category = "Public Safety"
	CategoryGBVAbuse     Category = "GBV/Abuse"
	CategoryOther        Category = "Other"
)

// AllCategories lists every category citizens may submit under.
var AllCategories = []Category{
	CategoryWater,
	CategoryElectricity,
	CategoryRoads,
	CategoryWaste,
	CategorySanitation,
	CategoryHousing,
	CategoryParks,
	CategoryPublicSafety,
	CategoryGBVAbuse,
	CategoryOther,
}

// Valid reports whether the category is one citizens may submit under.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if known == c {
			return true
		}
	}
	return false
}

// ReportStatus enumerates lifecycle states for reports.
type ReportStatus string

const (
	StatusOpen       ReportStatus = "open"
	StatusInProgress ReportStatus = "in_progress"
	StatusEscalated  ReportStatus = "escalated"
	StatusResolved   ReportStatus = "resolved"
	StatusClosed     ReportStatus = "closed"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []ReportStatus{StatusOpen, StatusInProgress, StatusEscalated, StatusResolved, StatusClosed}

var allowedTransitions = map[ReportStatus][]ReportStatus{
	StatusOpen:       {StatusInProgress, StatusEscalated},
	StatusInProgress: {StatusEscalated, StatusResolved},
	StatusEscalated:  {StatusInProgress, StatusResolved},
	StatusResolved:   {StatusClosed, StatusInProgress},
	StatusClosed:     {},
}

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether a report may move from s to next.
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Severity captures citizen-reported urgency.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within WGS84 bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// MediaRef points at an uploaded attachment in object storage.
type MediaRef struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Assignment is the routine staff/team routing of an ordinary report.
type Assignment struct {
	AssigneeID   *string
	AssigneeName string
	TeamName     string
}

// LiaisonAssignment routes a sensitive report to a police liaison officer.
type LiaisonAssignment struct {
	OfficerName  string
	StationName  string
	StationPhone string
}

// Report is a citizen-submitted service request.
type Report struct {
	ID             string
	TrackingNumber string
	TenantID       string
	Ward           *string
	OwnerID        string
	Category       Category
	Description    string
	Address        string
	Location       *GeoPoint
	Media          []MediaRef
	Severity       Severity
	Status         ReportStatus
	// IsSensitive is set once at creation and never changes.
	IsSensitive bool
	Assignment  *Assignment
	Liaison     *LiaisonAssignment
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

package firewall

import (
	"time"

	"github.com/civic-kit/report-service/internal/domain"
)

// View is a projected report. It is implemented only by FullView and LimitedView,
// so callers must switch on the concrete type to read any field beyond the
// tracking number and status.
type View interface {
	Tracking() string
	CurrentStatus() domain.ReportStatus
	sealed()
}

// EmergencyContact is a static hotline embedded in every limited view.
type EmergencyContact struct {
	Label  string
	Number string
}

// AssignmentView is the routine assignment of an ordinary report.
type AssignmentView struct {
	AssigneeID   *string
	AssigneeName string
	TeamName     string
}

// LiaisonView is the liaison routing of a sensitive report.
type LiaisonView struct {
	OfficerName  string
	StationName  string
	StationPhone string
}

// FullView carries every field of a report.
type FullView struct {
	TrackingNumber string
	TenantID       string
	Ward           *string
	Category       domain.Category
	Description    string
	Address        string
	Location       *domain.GeoPoint
	Media          []domain.MediaRef
	Severity       domain.Severity
	Status         domain.ReportStatus
	Sensitive      bool
	Assignment     *AssignmentView
	Liaison        *LiaisonView
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
}

func (v FullView) Tracking() string { return v.TrackingNumber }
func (v FullView) CurrentStatus() domain.ReportStatus { return v.Status }
func (FullView) sealed() {}

// LimitedView is the restricted allow-list shown to the owner of a sensitive report.
type LimitedView struct {
	TrackingNumber      string
	Status              domain.ReportStatus
	AssignedOfficerName string
	StationName         string
	StationPhone        string
	EmergencyContacts   []EmergencyContact
}

func (v LimitedView) Tracking() string { return v.TrackingNumber }
func (v LimitedView) CurrentStatus() domain.ReportStatus { return v.Status }
func (LimitedView) sealed() {}

// Projector turns a report and a decision into the permitted view.
type Projector struct {
	contacts []EmergencyContact
}

// NewProjector builds a projector embedding the given emergency contacts in every
// limited view.
func NewProjector(contacts []EmergencyContact) *Projector {
	return &Projector{contacts: append([]EmergencyContact(nil), contacts...)}
}

// Project returns the view permitted by decision. On Deny, or for a nil report, it
// returns no view at all.
func (p *Projector) Project(r *domain.Report, decision Decision) (View, bool) {
	if r == nil {
		return nil, false
	}
	switch decision {
	case Full:
		return p.full(r), true
	case Limited:
		return p.limited(r), true
	default:
		return nil, false
	}
}

// EmergencyContacts returns a copy of the configured hotlines.
func (p *Projector) EmergencyContacts() []EmergencyContact {
	return append([]EmergencyContact(nil), p.contacts...)
}

func (p *Projector) full(r *domain.Report) FullView {
	v := FullView{
		TrackingNumber: r.TrackingNumber,
		TenantID:       r.TenantID,
		Ward:           copyString(r.Ward),
		Category:       r.Category,
		Description:    r.Description,
		Address:        r.Address,
		Severity:       r.Severity,
		Status:         r.Status,
		Sensitive:      r.IsSensitive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ResolvedAt:     copyTime(r.ResolvedAt),
	}
	if r.Location != nil {
		loc := *r.Location
		v.Location = &loc
	}
	if len(r.Media) > 0 {
		v.Media = append([]domain.MediaRef(nil), r.Media...)
	}
	if r.Assignment != nil {
		v.Assignment = &AssignmentView{
			AssigneeID:   copyString(r.Assignment.AssigneeID),
			AssigneeName: r.Assignment.AssigneeName,
			TeamName:     r.Assignment.TeamName,
		}
	}
	if r.Liaison != nil {
		v.Liaison = &LiaisonView{
			OfficerName:  r.Liaison.OfficerName,
			StationName:  r.Liaison.StationName,
			StationPhone: r.Liaison.StationPhone,
		}
	}
	return v
}

// limited copies allow-listed fields one by one. Nothing else is read from r.
func (p *Projector) limited(r *domain.Report) LimitedView {
	v := LimitedView{
		TrackingNumber:    r.TrackingNumber,
		Status:            r.Status,
		EmergencyContacts: p.EmergencyContacts(),
	}
	if r.Liaison != nil {
		v.AssignedOfficerName = r.Liaison.OfficerName
		v.StationName = r.Liaison.StationName
		v.StationPhone = r.Liaison.StationPhone
	}
	return v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

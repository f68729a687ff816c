package firewall

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-kit/report-service/internal/domain"
)

var testContacts = []EmergencyContact{
	{Label: "SAPS Emergency", Number: "10111"},
	{Label: "GBV Command Centre", Number: "0800 428 428"},
}

func sensitiveReport() *domain.Report {
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return &domain.Report{
		ID:             "r-1",
		TrackingNumber: "TKT-20260501-ABC123",
		TenantID:       "cpt",
		Ward:           strPtr("W12"),
		OwnerID:        "citizen-1",
		Category:       domain.CategoryGBVAbuse,
		Description:    "private account of the incident",
		Address:        "12 Hidden Lane",
		Location:       &domain.GeoPoint{Lat: -33.92, Lng: 18.42},
		Media:          []domain.MediaRef{{StorageKey: "evidence/1.jpg", FileName: "1.jpg"}},
		Severity:       domain.SeverityCritical,
		Status:         domain.StatusInProgress,
		IsSensitive:    true,
		Assignment:     &domain.Assignment{AssigneeName: "Routine Clerk", TeamName: "Roads"},
		Liaison:        &domain.LiaisonAssignment{OfficerName: "Sgt. Dlamini", StationName: "Woodstock SAPS", StationPhone: "021 442 3100"},
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestProjectLimitedIsStrictAllowList(t *testing.T) {
	p := NewProjector(testContacts)
	report := sensitiveReport()

	view, ok := p.Project(report, Limited)
	require.True(t, ok)

	limited, isLimited := view.(LimitedView)
	require.True(t, isLimited, "expected LimitedView, got %T", view)
	_, isFull := view.(FullView)
	assert.False(t, isFull)

	assert.Equal(t, LimitedView{
		TrackingNumber:      "TKT-20260501-ABC123",
		Status:              domain.StatusInProgress,
		AssignedOfficerName: "Sgt. Dlamini",
		StationName:         "Woodstock SAPS",
		StationPhone:        "021 442 3100",
		EmergencyContacts:   testContacts,
	}, limited)

	raw, err := json.Marshal(limited)
	require.NoError(t, err)
	for _, leaked := range []string{"private account", "Hidden Lane", "evidence/1.jpg", "critical", "Routine Clerk", "Roads"} {
		assert.NotContains(t, string(raw), leaked)
	}
}

func TestProjectLimitedWithoutLiaison(t *testing.T) {
	p := NewProjector(testContacts)
	report := sensitiveReport()
	report.Liaison = nil

	view, ok := p.Project(report, Limited)
	require.True(t, ok)
	limited := view.(LimitedView)
	assert.Empty(t, limited.AssignedOfficerName)
	assert.Empty(t, limited.StationName)
	assert.Len(t, limited.EmergencyContacts, 2)
}

func TestProjectLimitedContactsAreNotShared(t *testing.T) {
	p := NewProjector(testContacts)
	first, _ := p.Project(sensitiveReport(), Limited)
	first.(LimitedView).EmergencyContacts[0].Number = "tampered"

	second, _ := p.Project(sensitiveReport(), Limited)
	assert.Equal(t, "10111", second.(LimitedView).EmergencyContacts[0].Number)
}

func TestProjectFullCopiesEveryField(t *testing.T) {
	p := NewProjector(testContacts)
	report := sensitiveReport()

	view, ok := p.Project(report, Full)
	require.True(t, ok)
	full, isFull := view.(FullView)
	require.True(t, isFull)

	assert.Equal(t, report.TrackingNumber, full.Tracking())
	assert.Equal(t, report.Description, full.Description)
	assert.Equal(t, report.Address, full.Address)
	assert.Equal(t, report.Media, full.Media)
	assert.Equal(t, domain.SeverityCritical, full.Severity)
	assert.True(t, full.Sensitive)
	require.NotNil(t, full.Assignment)
	assert.Equal(t, "Routine Clerk", full.Assignment.AssigneeName)
	require.NotNil(t, full.Liaison)
	assert.Equal(t, "Woodstock SAPS", full.Liaison.StationName)

	// mutating the view must not reach the stored record
	full.Media[0].FileName = "changed"
	full.Location.Lat = 0
	*full.Ward = "W99"
	assert.Equal(t, "1.jpg", report.Media[0].FileName)
	assert.Equal(t, -33.92, report.Location.Lat)
	assert.Equal(t, "W12", *report.Ward)
}

func TestProjectDenyReturnsNothing(t *testing.T) {
	p := NewProjector(testContacts)

	denied, ok := p.Project(sensitiveReport(), Deny)
	assert.False(t, ok)
	assert.Nil(t, denied)

	missing, ok := p.Project(nil, Full)
	assert.False(t, ok)
	assert.Nil(t, missing)

	// a denied record and a missing record are indistinguishable
	assert.Equal(t, denied, missing)
}

func TestProjectUnknownDecisionDenies(t *testing.T) {
	p := NewProjector(nil)
	view, ok := p.Project(sensitiveReport(), Decision(7))
	assert.False(t, ok)
	assert.Nil(t, view)
}

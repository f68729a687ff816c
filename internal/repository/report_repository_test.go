package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
)

var reportColumnNames = []string{
	"id", "tracking_number", "tenant_id", "ward", "owner_id", "category", "description", "address",
	"latitude", "longitude", "media", "severity", "status", "is_sensitive",
	"assignee_id", "assignee_name", "team_name",
	"liaison_officer_name", "liaison_station_name", "liaison_station_phone",
	"created_at", "updated_at", "resolved_at",
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectActor(mock pgxmock.PgxPoolIface, id, role, tenant, wards string) {
	mock.ExpectBegin()
	mock.ExpectExec("set_config").
		WithArgs(id, role, tenant, wards).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func citizen() firewall.Actor {
	return firewall.Actor{ID: "citizen-1", Role: domain.RoleCitizen, TenantID: "cpt"}
}

func TestCreateReportWritesHistoryInSameTransaction(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	expectActor(mock, "citizen-1", "citizen", "cpt", "")
	mock.ExpectQuery("INSERT INTO reports").
		WithArgs("TKT-20260501-ABC123", "cpt", pgxmock.AnyArg(), "citizen-1", domain.CategoryGBVAbuse, "statement", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), []domain.MediaRef{}, domain.SeverityHigh, domain.StatusOpen, true).
		WillReturnRows(mock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("r-1", now, now))
	mock.ExpectQuery("INSERT INTO report_history").
		WithArgs("r-1", strPtr("citizen-1"), domain.RoleCitizen, domain.ChangeTypeCreated, map[string]any{}, map[string]any{"status": "open"}).
		WillReturnRows(mock.NewRows([]string{"id", "created_at"}).AddRow("h-1", now))
	mock.ExpectCommit()

	report := &domain.Report{
		TrackingNumber: "TKT-20260501-ABC123",
		TenantID:       "cpt",
		OwnerID:        "citizen-1",
		Category:       domain.CategoryGBVAbuse,
		Description:    "statement",
		Severity:       domain.SeverityHigh,
		Status:         domain.StatusOpen,
		IsSensitive:    true,
	}
	entry := &domain.ReportHistory{
		ChangedByID: strPtr("citizen-1"),
		ChangedBy:   domain.RoleCitizen,
		ChangeType:  domain.ChangeTypeCreated,
		NewValue:    map[string]any{"status": "open"},
	}

	require.NoError(t, repo.Create(context.Background(), citizen(), report, entry))
	assert.Equal(t, "r-1", report.ID)
	assert.Equal(t, "r-1", entry.ReportID)
	assert.Equal(t, "h-1", entry.ID)
	assert.Equal(t, now, report.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReportMapsTrackingCollision(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)

	expectActor(mock, "citizen-1", "citizen", "cpt", "")
	mock.ExpectQuery("INSERT INTO reports").
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reports_tracking_number_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), citizen(), &domain.Report{TrackingNumber: "TKT-20260501-ABC123"}, nil)
	assert.True(t, errors.Is(err, ErrDuplicateTracking))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByTrackingScansAssignments(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	admin := firewall.Actor{ID: "admin-1", Role: domain.RoleAdmin, TenantID: "cpt", Wards: []string{"W1", "W2"}}

	expectActor(mock, "admin-1", "admin", "cpt", "W1,W2")
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE tracking_number=$1")).
		WithArgs("TKT-20260501-ABC123").
		WillReturnRows(mock.NewRows(reportColumnNames).AddRow(
			"r-1", "TKT-20260501-ABC123", "cpt", strPtr("W12"), "citizen-1", domain.CategoryGBVAbuse, "statement", "12 Hidden Lane",
			floatPtr(-33.92), floatPtr(18.42), []domain.MediaRef{}, domain.SeverityHigh, domain.StatusInProgress, true,
			nil, nil, nil,
			strPtr("Sgt. Dlamini"), strPtr("Woodstock SAPS"), strPtr("021 442 3100"),
			now, now, nil,
		))
	mock.ExpectCommit()

	report, err := repo.GetByTracking(context.Background(), admin, "TKT-20260501-ABC123")
	require.NoError(t, err)
	assert.True(t, report.IsSensitive)
	assert.Nil(t, report.Assignment)
	require.NotNil(t, report.Liaison)
	assert.Equal(t, "Woodstock SAPS", report.Liaison.StationName)
	require.NotNil(t, report.Location)
	assert.Equal(t, 18.42, report.Location.Lng)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForTenantExcludesSensitiveOutsideScope(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	manager := firewall.Actor{ID: "m-1", Role: domain.RoleManager, TenantID: "cpt"}

	expectActor(mock, "m-1", "manager", "cpt", "")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id=$1 AND is_sensitive = false AND status IN ($2)")).
		WithArgs("cpt", domain.StatusOpen).
		WillReturnRows(mock.NewRows(reportColumnNames))
	mock.ExpectCommit()

	reports, err := repo.ListForTenant(context.Background(), manager, ReportFilter{
		Scope:    firewall.ScopeOf(manager),
		Statuses: []domain.ReportStatus{domain.StatusOpen},
	})
	require.NoError(t, err)
	assert.Empty(t, reports)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForTenantWardScope(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	councillor := firewall.Actor{ID: "c-1", Role: domain.RoleWardCouncillor, TenantID: "cpt", Wards: []string{"W12"}}

	expectActor(mock, "c-1", "ward_councillor", "cpt", "W12")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id=$1 AND is_sensitive = false AND ward = ANY($2)")).
		WithArgs("cpt", []string{"W12"}).
		WillReturnRows(mock.NewRows(reportColumnNames))
	mock.ExpectCommit()

	_, err := repo.ListForTenant(context.Background(), councillor, ReportFilter{Scope: firewall.ScopeOf(councillor)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionWardsDropSeparatorEntries(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	councillor := firewall.Actor{ID: "c-1", Role: domain.RoleWardCouncillor, TenantID: "cpt", Wards: []string{"W12", "W13,W14"}}

	expectActor(mock, "c-1", "ward_councillor", "cpt", "W12")
	mock.ExpectQuery(regexp.QuoteMeta("ward = ANY($2)")).
		WithArgs("cpt", []string{"W12"}).
		WillReturnRows(mock.NewRows(reportColumnNames))
	mock.ExpectCommit()

	_, err := repo.ListForTenant(context.Background(), councillor, ReportFilter{Scope: firewall.ScopeOf(councillor)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForTenantEmptyScopeSkipsQuery(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)

	reports, err := repo.ListForTenant(context.Background(), citizen(), ReportFilter{Scope: firewall.ScopeOf(citizen())})
	require.NoError(t, err)
	assert.Nil(t, reports)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwnerFiltersOnActor(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	expectActor(mock, "citizen-1", "citizen", "cpt", "")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id::text=$1 ORDER BY updated_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("citizen-1").
		WillReturnRows(mock.NewRows(reportColumnNames).AddRow(
			"r-2", "TKT-20260501-DEF456", "cpt", nil, "citizen-1", domain.CategoryWater, "burst pipe", "3 Main Rd",
			nil, nil, []domain.MediaRef{}, domain.SeverityMedium, domain.StatusOpen, false,
			strPtr("staff-9"), strPtr("T. Nkosi"), strPtr("Water Ops"),
			nil, nil, nil,
			now, now, nil,
		))
	mock.ExpectCommit()

	reports, err := repo.ListByOwner(context.Background(), citizen(), ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.NotNil(t, reports[0].Assignment)
	assert.Equal(t, "Water Ops", reports[0].Assignment.TeamName)
	assert.Nil(t, reports[0].Liaison)
	assert.Nil(t, reports[0].Location)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRollsBackWhenRowIsHidden(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	worker := firewall.Actor{ID: "fw-1", Role: domain.RoleFieldWorker, TenantID: "cpt"}

	args := append([]any{domain.StatusResolved}, anyArgs(7)...)
	args = append(args, "r-1")

	expectActor(mock, "fw-1", "field_worker", "cpt", "")
	mock.ExpectQuery("UPDATE reports SET status").
		WithArgs(args...).
		WillReturnRows(mock.NewRows([]string{"updated_at"}))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), worker, &domain.Report{ID: "r-1", Status: domain.StatusResolved}, nil)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

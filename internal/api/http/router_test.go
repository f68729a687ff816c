package http

import (
	"context"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civic-kit/report-service/internal/api/http/handlers"
	"github.com/civic-kit/report-service/internal/auth"
	"github.com/civic-kit/report-service/internal/config"
	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/observability"
	"github.com/civic-kit/report-service/internal/repository"
	"github.com/civic-kit/report-service/internal/service"
)

const (
	ordinaryTracking  = "TKT-20260501-AAA111"
	sensitiveTracking = "TKT-20260501-BBB222"
	missingTracking   = "TKT-20260501-CCC333"
)

type tableReports struct {
	rows map[string]domain.Report
}

func (t *tableReports) Create(_ context.Context, _ firewall.Actor, report *domain.Report, _ *domain.ReportHistory) error {
	report.ID = "r-" + report.TrackingNumber
	t.rows[report.TrackingNumber] = *report
	return nil
}

func (t *tableReports) Update(_ context.Context, _ firewall.Actor, report *domain.Report, _ *domain.ReportHistory) error {
	t.rows[report.TrackingNumber] = *report
	return nil
}

func (t *tableReports) GetByTracking(_ context.Context, _ firewall.Actor, tracking string) (*domain.Report, error) {
	report, ok := t.rows[tracking]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &report, nil
}

func (t *tableReports) ListByOwner(_ context.Context, actor firewall.Actor, _ repository.ReportFilter) ([]domain.Report, error) {
	var out []domain.Report
	for _, r := range t.rows {
		if r.OwnerID == actor.ID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tableReports) ListForTenant(_ context.Context, actor firewall.Actor, _ repository.ReportFilter) ([]domain.Report, error) {
	var out []domain.Report
	for _, r := range t.rows {
		if r.TenantID == actor.TenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tableReports) ListByReport(context.Context, string) ([]domain.ReportHistory, error) {
	return nil, nil
}

type tableStats struct {
	facts []firewall.Fact
}

func (s *tableStats) Facts(_ context.Context, tenantID string) ([]firewall.Fact, error) {
	var out []firewall.Fact
	for _, f := range s.facts {
		if tenantID == "" || f.TenantID == tenantID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *tableStats) ClassificationCounts(context.Context) (firewall.ClassificationCounts, error) {
	return firewall.ClassificationCounts{}, nil
}

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
	stats  *tableStats
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	classifier, err := firewall.NewClassifier("")
	require.NoError(t, err)
	guard, err := firewall.NewGuard(classifier, 3, 6)
	require.NoError(t, err)

	ward := "W12"
	reports := &tableReports{rows: map[string]domain.Report{
		ordinaryTracking: {
			ID: "r-1", TrackingNumber: ordinaryTracking, TenantID: "cpt", Ward: &ward, OwnerID: "citizen-1",
			Category: domain.CategoryWater, Description: "burst pipe", Severity: domain.SeverityMedium, Status: domain.StatusOpen,
		},
		sensitiveTracking: {
			ID: "r-2", TrackingNumber: sensitiveTracking, TenantID: "cpt", Ward: &ward, OwnerID: "citizen-1",
			Category: domain.CategoryGBVAbuse, Description: "statement", Address: "12 Hidden Lane",
			Severity: domain.SeverityHigh, Status: domain.StatusOpen, IsSensitive: true,
		},
	}}
	stats := &tableStats{facts: []firewall.Fact{
		{TenantID: "cpt", Category: domain.CategoryWater, Status: domain.StatusOpen, Sensitivity: firewall.SensitivityOrdinary},
		{TenantID: "cpt", Category: domain.CategoryGBVAbuse, Status: domain.StatusOpen, Sensitivity: firewall.SensitivityProtected},
	}}

	metrics := observability.NewMetrics()
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}}
	authService := service.NewAuthService(cfg, nil)
	reportService := service.NewReportService(service.ReportDependencies{
		ReportRepo:  reports,
		HistoryRepo: reports,
		Classifier:  classifier,
		Projector:   firewall.NewProjector([]firewall.EmergencyContact{{Label: "SAPS Emergency", Number: "10111"}}),
		Metrics:     metrics,
	})
	statsService := service.NewStatsService(service.StatsDependencies{StatsRepo: stats, Guard: guard, Metrics: metrics})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("civic", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Reports:        handlers.NewReportsHandler(reportService),
		Staff:          handlers.NewStaffReportsHandler(reportService),
		Admin:          handlers.NewAdminHandler(authService),
		Public:         handlers.NewPublicStatsHandler(statsService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), nil),
		Metrics:        metrics,
	})
	return testServer{app: app, tokens: authService.TokenManager(), stats: stats}
}

func (s testServer) do(t *testing.T, method, path string, account *domain.Account, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if account != nil {
		token, _, err := s.tokens.GenerateToken(account)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func accountWith(id string, role domain.Role) *domain.Account {
	return &domain.Account{ID: id, Role: role, TenantID: "cpt", Active: true}
}

func TestStaffListingNeverMentionsSensitiveReport(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, stdhttp.MethodGet, "/staff/reports", accountWith("m-1", domain.RoleManager), "")
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Contains(t, body, ordinaryTracking)
	assert.Contains(t, body, `"view":"full"`)
	assert.NotContains(t, body, sensitiveTracking)
	assert.NotContains(t, body, "GBV")
	assert.NotContains(t, body, "Hidden Lane")
}

func TestDeniedAndMissingRenderIdentically(t *testing.T) {
	s := newTestServer(t)
	manager := accountWith("m-1", domain.RoleManager)

	deniedStatus, denied := s.do(t, stdhttp.MethodGet, "/reports/"+sensitiveTracking, manager, "")
	missingStatus, missing := s.do(t, stdhttp.MethodGet, "/reports/"+missingTracking, manager, "")

	assert.Equal(t, stdhttp.StatusNotFound, deniedStatus)
	assert.Equal(t, missingStatus, deniedStatus)
	assert.Equal(t, missing, denied)
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"report not found"}}`, denied)

	historyStatus, history := s.do(t, stdhttp.MethodGet, "/reports/"+sensitiveTracking+"/history", manager, "")
	assert.Equal(t, stdhttp.StatusNotFound, historyStatus)
	assert.Equal(t, missing, history)

	anonStatus, anon := s.do(t, stdhttp.MethodGet, "/reports/"+ordinaryTracking, nil, "")
	assert.Equal(t, stdhttp.StatusNotFound, anonStatus)
	assert.Equal(t, missing, anon)
}

func TestOwnerReceivesLimitedView(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, stdhttp.MethodGet, "/reports/"+sensitiveTracking, accountWith("citizen-1", domain.RoleCitizen), "")
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Contains(t, body, `"view":"limited"`)
	assert.Contains(t, body, "10111")
	for _, leaked := range []string{"statement", "Hidden Lane", "category", "description", "address", "location"} {
		assert.NotContains(t, body, leaked)
	}
}

func TestSubmitRequiresCitizen(t *testing.T) {
	s := newTestServer(t)
	payload := `{"category":"GBV/Abuse","description":"statement"}`

	status, body := s.do(t, stdhttp.MethodPost, "/reports", accountWith("citizen-2", domain.RoleCitizen), payload)
	assert.Equal(t, stdhttp.StatusCreated, status)
	assert.Contains(t, body, `"view":"limited"`)

	status, _ = s.do(t, stdhttp.MethodPost, "/reports", accountWith("m-1", domain.RoleManager), payload)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, body = s.do(t, stdhttp.MethodPost, "/reports", accountWith("citizen-2", domain.RoleCitizen), `{"category":"Unknown","description":"x"}`)
	assert.Equal(t, stdhttp.StatusBadRequest, status)
	assert.Contains(t, body, "VALIDATION_FAILED")
}

func TestAuthenticationAndRoleGates(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, stdhttp.MethodGet, "/reports/mine", nil, "")
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
	assert.Contains(t, body, "UNAUTHORIZED")

	status, _ = s.do(t, stdhttp.MethodGet, "/staff/reports", accountWith("citizen-1", domain.RoleCitizen), "")
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, _ = s.do(t, stdhttp.MethodPost, "/admin/accounts", accountWith("m-1", domain.RoleManager), `{}`)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, _ = s.do(t, stdhttp.MethodGet, "/no/such/route", nil, "")
	assert.Equal(t, stdhttp.StatusNotFound, status)
}

func TestPublicStatistics(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, stdhttp.MethodGet, "/public/tenants/cpt/summary", nil, "")
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Contains(t, body, `"total_tickets":1`)
	assert.NotContains(t, body, "GBV")

	status, body = s.do(t, stdhttp.MethodGet, "/public/sensitive-total", nil, "")
	assert.Equal(t, stdhttp.StatusNotFound, status)
	assert.Contains(t, body, "NOT_FOUND")

	s.stats.facts = append(s.stats.facts, firewall.Fact{TenantID: "cpt", Category: domain.CategoryRoads, Status: domain.StatusOpen})
	status, body = s.do(t, stdhttp.MethodGet, "/public/comparison", nil, "")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"error":{"code":"AGGREGATE_UNAVAILABLE","message":"statistics temporarily unavailable"}}`, body)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, stdhttp.MethodGet, "/staff/reports", accountWith("m-1", domain.RoleManager), "")

	status, body := s.do(t, stdhttp.MethodGet, "/metrics", nil, "")
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Contains(t, body, `civic_firewall_decisions_total{decision="DENY"} 1`)
	assert.Contains(t, body, "civic_http_requests_total")
}

func TestReadinessReportsMissingDependencies(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, stdhttp.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, status)
	assert.Contains(t, body, "DEPENDENCY_UNAVAILABLE")

	status, _ = s.do(t, stdhttp.MethodGet, "/health/live", nil, "")
	assert.Equal(t, stdhttp.StatusOK, status)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/events"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/repository"
)

// memReports ignores listing scopes on purpose so the service-side policy
// re-check is what keeps denied rows out.
type memReports struct {
	mu         sync.Mutex
	reports    map[string]domain.Report
	history    []domain.ReportHistory
	collisions int
	creates    int
	seq        int
}

func newMemReports() *memReports {
	return &memReports{reports: make(map[string]domain.Report)}
}

func (m *memReports) Create(_ context.Context, _ firewall.Actor, report *domain.Report, entry *domain.ReportHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.collisions > 0 {
		m.collisions--
		return repository.ErrDuplicateTracking
	}
	m.seq++
	report.ID = fmt.Sprintf("r-%d", m.seq)
	report.CreatedAt = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	report.UpdatedAt = report.CreatedAt
	m.reports[report.TrackingNumber] = *report
	if entry != nil {
		entry.ReportID = report.ID
		m.appendHistory(*entry)
	}
	return nil
}

func (m *memReports) Update(_ context.Context, _ firewall.Actor, report *domain.Report, entry *domain.ReportHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[report.TrackingNumber]; !ok {
		return pgx.ErrNoRows
	}
	m.reports[report.TrackingNumber] = *report
	if entry != nil {
		entry.ReportID = report.ID
		m.appendHistory(*entry)
	}
	return nil
}

func (m *memReports) GetByTracking(_ context.Context, _ firewall.Actor, tracking string) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[tracking]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &report, nil
}

func (m *memReports) ListByOwner(_ context.Context, actor firewall.Actor, _ repository.ReportFilter) ([]domain.Report, error) {
	return m.filter(func(r domain.Report) bool { return r.OwnerID == actor.ID }), nil
}

func (m *memReports) ListForTenant(_ context.Context, actor firewall.Actor, _ repository.ReportFilter) ([]domain.Report, error) {
	return m.filter(func(r domain.Report) bool { return r.TenantID == actor.TenantID }), nil
}

func (m *memReports) ListByReport(_ context.Context, reportID string) ([]domain.ReportHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReportHistory
	for _, entry := range m.history {
		if entry.ReportID == reportID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memReports) filter(keep func(domain.Report) bool) []domain.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Report
	for _, r := range m.reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memReports) appendHistory(entry domain.ReportHistory) {
	entry.ID = fmt.Sprintf("h-%d", len(m.history)+1)
	entry.CreatedAt = time.Date(2026, 5, 1, 8, 0, len(m.history), 0, time.UTC)
	m.history = append(m.history, entry)
}

func (m *memReports) put(r domain.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.TrackingNumber] = r
}

type recordingInvalidator struct {
	tenants []string
}

func (r *recordingInvalidator) InvalidateTenant(_ context.Context, tenantID string) error {
	r.tenants = append(r.tenants, tenantID)
	return nil
}

type recordingDispatcher struct {
	events []events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

type memAccounts struct {
	mu       sync.Mutex
	byEmail  map[string]*domain.Account
	sequence int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byEmail: make(map[string]*domain.Account)}
}

func (m *memAccounts) Create(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[account.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	m.sequence++
	account.ID = fmt.Sprintf("acc-%d", m.sequence)
	stored := *account
	m.byEmail[account.Email] = &stored
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byEmail {
		if account.ID == id {
			copied := *account
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *account
	return &copied, nil
}

type stubStats struct {
	facts  []firewall.Fact
	counts firewall.ClassificationCounts
	calls  int
	err    error
}

func (s *stubStats) Facts(_ context.Context, tenantID string) ([]firewall.Fact, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if tenantID == "" {
		return s.facts, nil
	}
	var out []firewall.Fact
	for _, f := range s.facts {
		if f.TenantID == tenantID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *stubStats) ClassificationCounts(context.Context) (firewall.ClassificationCounts, error) {
	s.calls++
	return s.counts, s.err
}

package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/civic-kit/report-service/internal/cache"
	"github.com/civic-kit/report-service/internal/firewall"
	"github.com/civic-kit/report-service/internal/observability"
	"github.com/civic-kit/report-service/internal/repository"
	apperrors "github.com/civic-kit/report-service/pkg/util/errorutil"
)

// StatsService serves public statistics. Facts pass through the aggregate guard
// before anything is cached or returned.
type StatsService struct {
	facts                  repository.StatsRepository
	guard                  *firewall.Guard
	cache                  *cache.StatsCache
	metrics                *observability.Metrics
	logger                 *zap.Logger
	sensitiveTotalApproved bool
}

// StatsDependencies bundles collaborators for the stats service.
type StatsDependencies struct {
	StatsRepo repository.StatsRepository
	Guard     *firewall.Guard
	Cache     *cache.StatsCache
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	// SensitiveTotalApproved enables the system-wide sensitive total.
	SensitiveTotalApproved bool
}

// NewStatsService constructs the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		facts:                  deps.StatsRepo,
		guard:                  deps.Guard,
		cache:                  deps.Cache,
		metrics:                deps.Metrics,
		logger:                 logger,
		sensitiveTotalApproved: deps.SensitiveTotalApproved,
	}
}

// TenantSummary returns the public breakdown for one tenant.
func (s *StatsService) TenantSummary(ctx context.Context, tenantID string) (firewall.Summary, error) {
	tenantID, err := requireTenant(tenantID)
	if err != nil {
		return firewall.Summary{}, err
	}
	var summary firewall.Summary
	if s.cached(ctx, cache.SummaryKey(tenantID), &summary) {
		return summary, nil
	}

	facts, err := s.facts.Facts(ctx, tenantID)
	if err != nil {
		return firewall.Summary{}, err
	}
	summary, err = s.guard.Summarize(tenantID, facts)
	if err != nil {
		return firewall.Summary{}, s.withheld("summary", err)
	}
	s.store(ctx, cache.SummaryKey(tenantID), summary)
	return summary, nil
}

// Heatmap returns k-anonymous geohash cells for one tenant.
func (s *StatsService) Heatmap(ctx context.Context, tenantID string) ([]firewall.HeatCell, error) {
	tenantID, err := requireTenant(tenantID)
	if err != nil {
		return nil, err
	}
	var cells []firewall.HeatCell
	if s.cached(ctx, cache.HeatmapKey(tenantID), &cells) {
		return cells, nil
	}

	facts, err := s.facts.Facts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cells, err = s.guard.Heatmap(facts)
	if err != nil {
		return nil, s.withheld("heatmap", err)
	}
	s.store(ctx, cache.HeatmapKey(tenantID), cells)
	return cells, nil
}

// TenantComparison returns totals and resolution rates for every tenant.
func (s *StatsService) TenantComparison(ctx context.Context) ([]firewall.TenantTotals, error) {
	var rows []firewall.TenantTotals
	if s.cached(ctx, cache.ComparisonKey(), &rows) {
		return rows, nil
	}

	facts, err := s.facts.Facts(ctx, "")
	if err != nil {
		return nil, err
	}
	rows, err = s.guard.Compare(facts)
	if err != nil {
		return nil, s.withheld("comparison", err)
	}
	s.store(ctx, cache.ComparisonKey(), rows)
	return rows, nil
}

// SystemSensitiveTotal returns the system-wide sensitive count when the surface is
// approved. There is no per-tenant variant.
func (s *StatsService) SystemSensitiveTotal(ctx context.Context) (firewall.SensitiveTotal, error) {
	if !s.sensitiveTotalApproved {
		return firewall.SensitiveTotal{}, apperrors.NewNotFound("statistic", nil)
	}
	var total firewall.SensitiveTotal
	if s.cached(ctx, cache.SensitiveTotalKey(), &total) {
		return total, nil
	}

	counts, err := s.facts.ClassificationCounts(ctx)
	if err != nil {
		return firewall.SensitiveTotal{}, err
	}
	total, err = s.guard.SensitiveTotalOf(counts)
	if err != nil {
		return firewall.SensitiveTotal{}, s.withheld("sensitive_total", err)
	}
	s.store(ctx, cache.SensitiveTotalKey(), total)
	return total, nil
}

// Refresh recomputes the comparison and every tenant summary it names, warming
// the cache for the public dashboards.
func (s *StatsService) Refresh(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("stats cache flush failed", zap.Error(err))
	}
	rows, err := s.TenantComparison(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, row := range rows {
		if _, err := s.TenantSummary(ctx, row.TenantID); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.Heatmap(ctx, row.TenantID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withheld turns a guard failure into the public 503 and raises a security event.
func (s *StatsService) withheld(surface string, err error) error {
	if !errors.Is(err, firewall.ErrAggregateIntegrity) {
		return err
	}
	s.metrics.RecordIntegrityFailure()
	observability.SecurityEvent(s.logger, "aggregate withheld: sensitive rows could not be excluded",
		zap.String("surface", surface),
		zap.Error(err))
	return apperrors.NewAggregateUnavailable(err)
}

func (s *StatsService) cached(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	s.metrics.RecordCacheLookup(hit)
	return hit
}

func (s *StatsService) store(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func requireTenant(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", apperrors.NewValidationError("tenant is required", nil)
	}
	return tenantID, nil
}

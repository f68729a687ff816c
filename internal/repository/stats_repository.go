package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
)

// StatsRepository is the aggregate fact source. Reads run under the aggregate
// session role, which row-level security limits to non-sensitive rows.
type StatsRepository interface {
	// Facts returns aggregate facts for one tenant, or every tenant when tenantID is empty.
	Facts(ctx context.Context, tenantID string) ([]firewall.Fact, error)
	ClassificationCounts(ctx context.Context) (firewall.ClassificationCounts, error)
}

type statsRepository struct {
	db DB
}

// NewStatsRepository builds repository.
func NewStatsRepository(db DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Facts(ctx context.Context, tenantID string) ([]firewall.Fact, error) {
	query := `SELECT tenant_id, category, status, severity, is_sensitive, latitude, longitude, created_at, resolved_at
        FROM reports`
	var args []any
	if tenantID != "" {
		query += ` WHERE tenant_id=$1`
		args = append(args, tenantID)
	}

	var facts []firewall.Fact
	err := withActor(ctx, r.db, aggregateActor(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				fact      firewall.Fact
				sensitive *bool
				lat, lng  *float64
			)
			if err := rows.Scan(
				&fact.TenantID,
				&fact.Category,
				&fact.Status,
				&fact.Severity,
				&sensitive,
				&lat,
				&lng,
				&fact.CreatedAt,
				&fact.ResolvedAt,
			); err != nil {
				return err
			}
			fact.Sensitivity = firewall.SensitivityOf(sensitive)
			if lat != nil && lng != nil {
				fact.Location = &domain.GeoPoint{Lat: *lat, Lng: *lng}
			}
			facts = append(facts, fact)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return facts, nil
}

func (r *statsRepository) ClassificationCounts(ctx context.Context) (firewall.ClassificationCounts, error) {
	const query = `SELECT sensitive, total FROM report_classification_counts()`

	var counts firewall.ClassificationCounts
	err := withActor(ctx, r.db, aggregateActor(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				sensitive *bool
				total     int64
			)
			if err := rows.Scan(&sensitive, &total); err != nil {
				return err
			}
			switch firewall.SensitivityOf(sensitive) {
			case firewall.SensitivityProtected:
				counts.Protected += int(total)
			case firewall.SensitivityOrdinary:
				counts.Ordinary += int(total)
			default:
				counts.Unclassified += int(total)
			}
		}
		return rows.Err()
	})
	return counts, err
}

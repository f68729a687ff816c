package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
)

// ReportFilter captures listing parameters.
type ReportFilter struct {
	// Scope limits tenant listings to what the actor can possibly read.
	Scope       firewall.Scope
	Statuses    []domain.ReportStatus
	Categories  []domain.Category
	Ward        *string
	AssigneeID  *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ReportRepository encapsulates report persistence. Every call runs under the
// caller's row-level-security context.
type ReportRepository interface {
	Create(ctx context.Context, actor firewall.Actor, report *domain.Report, entry *domain.ReportHistory) error
	Update(ctx context.Context, actor firewall.Actor, report *domain.Report, entry *domain.ReportHistory) error
	GetByTracking(ctx context.Context, actor firewall.Actor, tracking string) (*domain.Report, error)
	ListByOwner(ctx context.Context, actor firewall.Actor, filter ReportFilter) ([]domain.Report, error)
	ListForTenant(ctx context.Context, actor firewall.Actor, filter ReportFilter) ([]domain.Report, error)
}

type reportRepository struct {
	db DB
}

// NewReportRepository instantiates repository.
func NewReportRepository(db DB) ReportRepository {
	return &reportRepository{db: db}
}

const reportColumns = `id, tracking_number, tenant_id, ward, owner_id, category, description, address,
       latitude, longitude, media, severity, status, is_sensitive,
       assignee_id, assignee_name, team_name,
       liaison_officer_name, liaison_station_name, liaison_station_phone,
       created_at, updated_at, resolved_at`

const trackingConstraint = "reports_tracking_number_key"

func (r *reportRepository) Create(ctx context.Context, actor firewall.Actor, report *domain.Report, entry *domain.ReportHistory) error {
	const query = `
        INSERT INTO reports (tracking_number, tenant_id, ward, owner_id, category, description, address,
            latitude, longitude, media, severity, status, is_sensitive)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`

	lat, lng := splitLocation(report.Location)
	media := report.Media
	if media == nil {
		media = []domain.MediaRef{}
	}

	err := withActor(ctx, r.db, actor, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			report.TrackingNumber,
			report.TenantID,
			report.Ward,
			report.OwnerID,
			report.Category,
			report.Description,
			report.Address,
			lat,
			lng,
			media,
			report.Severity,
			report.Status,
			report.IsSensitive,
		).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt); err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		entry.ReportID = report.ID
		return insertHistory(ctx, tx, entry)
	})
	if isUniqueViolation(err, trackingConstraint) {
		return ErrDuplicateTracking
	}
	return err
}

func (r *reportRepository) Update(ctx context.Context, actor firewall.Actor, report *domain.Report, entry *domain.ReportHistory) error {
	const query = `
        UPDATE reports SET status=$1, assignee_id=$2, assignee_name=$3, team_name=$4,
            liaison_officer_name=$5, liaison_station_name=$6, liaison_station_phone=$7,
            resolved_at=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`

	var (
		assigneeID, assigneeName, teamName *string
		officer, station, phone            *string
	)
	if a := report.Assignment; a != nil {
		assigneeID, assigneeName, teamName = a.AssigneeID, &a.AssigneeName, &a.TeamName
	}
	if l := report.Liaison; l != nil {
		officer, station, phone = &l.OfficerName, &l.StationName, &l.StationPhone
	}

	return withActor(ctx, r.db, actor, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			report.Status,
			assigneeID,
			assigneeName,
			teamName,
			officer,
			station,
			phone,
			report.ResolvedAt,
			report.ID,
		).Scan(&report.UpdatedAt); err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		entry.ReportID = report.ID
		return insertHistory(ctx, tx, entry)
	})
}

func (r *reportRepository) GetByTracking(ctx context.Context, actor firewall.Actor, tracking string) (*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE tracking_number=$1`

	var report *domain.Report
	err := withActor(ctx, r.db, actor, func(tx pgx.Tx) error {
		var err error
		report, err = scanReport(tx.QueryRow(ctx, query, tracking))
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *reportRepository) ListByOwner(ctx context.Context, actor firewall.Actor, filter ReportFilter) ([]domain.Report, error) {
	clauses := []string{"owner_id::text=$1"}
	args := []any{actor.ID}
	return r.list(ctx, actor, clauses, args, filter)
}

func (r *reportRepository) ListForTenant(ctx context.Context, actor firewall.Actor, filter ReportFilter) ([]domain.Report, error) {
	scope := filter.Scope
	if scope.Empty() {
		return nil, nil
	}
	clauses := []string{"tenant_id=$1"}
	args := []any{actor.TenantID}

	switch {
	case scope.Ordinary && !scope.Sensitive:
		clauses = append(clauses, "is_sensitive = false")
	case scope.Sensitive && !scope.Ordinary:
		clauses = append(clauses, "is_sensitive = true")
	}
	if len(scope.Wards) > 0 {
		args = append(args, scope.Wards)
		clauses = append(clauses, fmt.Sprintf("ward = ANY($%d)", len(args)))
	}
	return r.list(ctx, actor, clauses, args, filter)
}

func (r *reportRepository) list(ctx context.Context, actor firewall.Actor, clauses []string, args []any, filter ReportFilter) ([]domain.Report, error) {
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Ward != nil {
		args = append(args, *filter.Ward)
		clauses = append(clauses, fmt.Sprintf("ward=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id::text=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(description) LIKE %s OR LOWER(address) LIKE %s OR LOWER(tracking_number) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM reports WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		reportColumns, strings.Join(clauses, " AND "), limit, offset)

	var result []domain.Report
	err := withActor(ctx, r.db, actor, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			report, err := scanReport(rows)
			if err != nil {
				return err
			}
			result = append(result, *report)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		report                         domain.Report
		lat, lng                       *float64
		assigneeID                     *string
		assigneeName, teamName         *string
		officer, station, stationPhone *string
	)
	if err := row.Scan(
		&report.ID,
		&report.TrackingNumber,
		&report.TenantID,
		&report.Ward,
		&report.OwnerID,
		&report.Category,
		&report.Description,
		&report.Address,
		&lat,
		&lng,
		&report.Media,
		&report.Severity,
		&report.Status,
		&report.IsSensitive,
		&assigneeID,
		&assigneeName,
		&teamName,
		&officer,
		&station,
		&stationPhone,
		&report.CreatedAt,
		&report.UpdatedAt,
		&report.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		report.Location = &domain.GeoPoint{Lat: *lat, Lng: *lng}
	}
	if assigneeID != nil || assigneeName != nil || teamName != nil {
		report.Assignment = &domain.Assignment{
			AssigneeID:   assigneeID,
			AssigneeName: deref(assigneeName),
			TeamName:     deref(teamName),
		}
	}
	if officer != nil || station != nil || stationPhone != nil {
		report.Liaison = &domain.LiaisonAssignment{
			OfficerName:  deref(officer),
			StationName:  deref(station),
			StationPhone: deref(stationPhone),
		}
	}
	return &report, nil
}

func splitLocation(p *domain.GeoPoint) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

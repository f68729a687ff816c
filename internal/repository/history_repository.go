package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/civic-kit/report-service/internal/domain"
)

// HistoryRepository reads report audit entries. Entries are written inside the
// report transaction that caused them.
type HistoryRepository interface {
	ListByReport(ctx context.Context, reportID string) ([]domain.ReportHistory, error)
}

type historyRepository struct {
	db DB
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(db DB) HistoryRepository {
	return &historyRepository{db: db}
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.ReportHistory) error {
	const query = `
        INSERT INTO report_history (report_id, changed_by_id, changed_by_role, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		entry.ReportID,
		entry.ChangedByID,
		entry.ChangedBy,
		entry.ChangeType,
		jsonObject(entry.OldValue),
		jsonObject(entry.NewValue),
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListByReport(ctx context.Context, reportID string) ([]domain.ReportHistory, error) {
	const query = `
        SELECT id, report_id, changed_by_id, changed_by_role, change_type, old_value, new_value, created_at
        FROM report_history WHERE report_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ReportHistory
	for rows.Next() {
		var entry domain.ReportHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.ReportID,
			&entry.ChangedByID,
			&entry.ChangedBy,
			&entry.ChangeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func jsonObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
